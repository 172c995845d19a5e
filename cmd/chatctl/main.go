package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatdesk/clients/backendclient"
	"chatdesk/config"
	"chatdesk/coordinator"
	"chatdesk/eventbus"
	"chatdesk/internal/logger"
	"chatdesk/models"
	"chatdesk/state"
)

var (
	backendURL string
	modelID    string
	logLevel   string
	timeout    time.Duration
	sessionID  string
)

// rootCmd starts the interactive chat shell
var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Terminal client for the chat backend",
	Long: `chatctl is a line-oriented client for the document chat backend.

Run without arguments to start the interactive shell. Type /help inside the
shell for the list of commands; any other line is sent as a chat message.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := app.coord.Bootstrap(ctx); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: backend not reachable, lists are empty")
		}
		sh := newShell(app.coord, app.bus, cmd.OutOrStdout())
		return sh.run(ctx, cmd.InOrStdin())
	},
}

// sessionsCmd lists sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := app.coord.LoadSessions(ctx); err != nil {
			return err
		}
		printSessions(cmd.OutOrStdout(), app.coord.Snapshot())
		return nil
	},
}

// modelsCmd lists models
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := app.coord.LoadModels(ctx); err != nil {
			return err
		}
		printModels(cmd.OutOrStdout(), app.coord.Snapshot())
		return nil
	},
}

// askCmd sends a single message
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message and print the reply",
	Long: `Send one message and print the assistant's reply.

Without --session a new general session is created.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if sessionID != "" {
			if err := app.coord.LoadSessions(ctx); err != nil {
				return err
			}
			if err := app.coord.SelectSession(ctx, sessionID); err != nil {
				return err
			}
		}
		reply, err := app.coord.SendMessage(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
		return nil
	},
}

// healthCmd checks the backend
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		resp, err := app.coord.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", resp.Status, resp.Service)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend base URL (default: config backend.base_url)")
	rootCmd.PersistentFlags().StringVarP(&modelID, "model", "m", "", "Model to use (default: config chat.default_model)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for one-shot commands")

	askCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session to send the message in")

	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	bus   *eventbus.MemoryEventBus
	coord *coordinator.Coordinator
}

func newApp() (*app, error) {
	config.InitApp()
	cfg := config.GetConfig()
	if backendURL != "" {
		cfg.Backend.BaseURL = strings.TrimRight(backendURL, "/")
	}
	if modelID != "" {
		cfg.Chat.DefaultModel = modelID
	}
	// keep JSON logs off the shell output
	level := logLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = v
	}
	logger.SetLogger(logger.NewLoggerTo(os.Stderr, level))

	bus := eventbus.NewMemoryEventBus(0)
	store := state.NewStore(cfg.Chat.DefaultModel, bus)
	return &app{
		bus:   bus,
		coord: coordinator.New(backendclient.New(cfg.Backend), store, bus, cfg),
	}, nil
}

func (a *app) close() {
	a.bus.Close()
}

func modeLabel(m models.SessionMode) string {
	if m == models.ModeDocument {
		return "doc"
	}
	return "chat"
}
