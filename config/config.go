package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

const (
	envBackendURL  = "CHATDESK_BACKEND_URL"
	envGatewayAddr = "CHATDESK_GATEWAY_ADDR"
)

type AppConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Backend BackendConfig `yaml:"backend"`
	Chat    ChatConfig    `yaml:"chat"`
	Upload  UploadConfig  `yaml:"upload"`
	Gateway GatewayConfig `yaml:"gateway"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// BackendConfig 는 원격 LLM 백엔드 접속 정보다.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ChatConfig 는 채팅/Q&A 호출 시 사용하는 기본값을 정의한다.
type ChatConfig struct {
	// DefaultModel 은 레지스트리가 처음 선택하는 모델 ID 다.
	// 세션을 전환해도 선택은 유지된다.
	DefaultModel string  `yaml:"default_model"`
	Temperature  float64 `yaml:"temperature"`
	QAQuestions  int     `yaml:"qa_questions"`
}

// UploadConfig 는 문서 업로드 전 클라이언트 측 검증 기준이다.
type UploadConfig struct {
	MaxBytes     int64    `yaml:"max_bytes"`
	AllowedTypes []string `yaml:"allowed_types"`
}

type GatewayConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Default 는 config.yaml 이 없을 때 사용하는 기본 설정을 반환한다.
func Default() AppConfig {
	return AppConfig{
		Logging: LoggingConfig{Level: "info"},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8001",
			Timeout: 2 * time.Minute,
		},
		Chat: ChatConfig{
			DefaultModel: "allenai/molmo-2-8b:free",
			Temperature:  0.7,
			QAQuestions:  5,
		},
		Upload: UploadConfig{
			MaxBytes:     20 << 20,
			AllowedTypes: []string{"application/pdf"},
		},
		Gateway: GatewayConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
		},
	}
}

var (
	mu     sync.RWMutex
	config *AppConfig
)

// InitApp 은 .env 와 config.yaml 을 읽어 전역 설정을 초기화한다.
// config.yaml 이 없으면 기본값으로 동작하지만, 파싱 오류는 즉시 실패로 처리한다.
func InitApp() {
	base := GetBasePath()

	// load environment variables
	godotenv.Load(filepath.Join(base, ENV_FILE))

	c, err := Load(filepath.Join(base, CONFIG_FILE))
	if err != nil {
		panic(err)
	}

	mu.Lock()
	config = &c
	mu.Unlock()
}

// Load 는 주어진 경로의 yaml 파일을 기본값 위에 덮어써서 읽는다.
// 파일이 존재하지 않으면 기본값에 환경변수만 적용한 결과를 반환한다.
func Load(path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 는 yaml 바이트를 기본 설정 위에 적용하고 환경변수 오버라이드를 반영한다.
func Parse(data []byte) (AppConfig, error) {
	c := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return AppConfig{}, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(envBackendURL)); v != "" {
		c.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envGatewayAddr)); v != "" {
		c.Gateway.Addr = v
	}

	c.normalize()
	return c, nil
}

// normalize 는 0 또는 음수로 들어온 값을 기본값으로 되돌린다.
func (c *AppConfig) normalize() {
	def := Default()
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = def.Backend.Timeout
	}
	if c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = def.Chat.DefaultModel
	}
	if c.Chat.Temperature < 0 {
		c.Chat.Temperature = def.Chat.Temperature
	}
	if c.Chat.QAQuestions <= 0 {
		c.Chat.QAQuestions = def.Chat.QAQuestions
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = def.Upload.MaxBytes
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = def.Upload.AllowedTypes
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
}

func GetConfig() AppConfig {
	mu.RLock()
	c := config
	mu.RUnlock()
	if c == nil {
		InitApp()
		mu.RLock()
		c = config
		mu.RUnlock()
	}

	return *c
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return cwd
}
