package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"chatdesk/backendtest"
	"chatdesk/internal/logger"
)

var addr string

// rootCmd는 실제 LLM 백엔드 없이 게이트웨이/chatctl 을 띄워볼 수 있도록
// 인메모리 백엔드를 HTTP 로 노출한다.
var rootCmd = &cobra.Command{
	Use:          "mockbackend",
	Short:        "Serve the in-memory chat backend over HTTP",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.InitFromEnv("LOG_LEVEL", "info")

		srv := &http.Server{
			Addr:              addr,
			Handler:           backendtest.New().Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.InfoWithFields("mock backend listening", logger.Fields{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", ":8001", "Listen address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
