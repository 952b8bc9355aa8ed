package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// MaxUploadMB bounds MAX_UPLOAD_MB so the byte limit cannot overflow.
const MaxUploadMB = 1024

// DefaultLabels are the model's output classes, in output index order.
var DefaultLabels = []string{"Fresh", "Half-Fresh", "Spoiled"}

type Config struct {
	Port           int
	ModelPath      string
	LibraryPath    string // ONNX Runtime shared library, empty for the default lookup
	InputName      string
	OutputName     string
	ImageSize      int
	Labels         []string
	Interpolation  string
	MaxUploadBytes int64
	LogDirectory   string // empty logs to the console only
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// a missing .env is fine, real env vars still apply
	_ = godotenv.Load()

	return &Config{
		Port:           getEnvAsInt("PORT", 5000),
		ModelPath:      getEnv("MODEL_PATH", filepath.Join(".", "models", "resnet_finetuning.onnx")),
		LibraryPath:    getEnv("ONNXRUNTIME_LIB", ""),
		InputName:      getEnv("MODEL_INPUT_NAME", "input"),
		OutputName:     getEnv("MODEL_OUTPUT_NAME", "output"),
		ImageSize:      getEnvAsInt("IMAGE_SIZE", 224),
		Labels:         getEnvAsList("CLASS_LABELS", DefaultLabels),
		Interpolation:  getEnv("RESIZE_INTERPOLATION", "nearest"),
		MaxUploadBytes: uploadBytes(getEnvAsInt64("MAX_UPLOAD_MB", 10)),
		LogDirectory:   getEnv("LOG_DIR", ""),
	}
}

func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is empty")
	}
	if len(c.Labels) == 0 {
		return errors.New("no class labels configured")
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("invalid image size %d", c.ImageSize)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid upload limit %d", c.MaxUploadBytes)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// uploadBytes converts megabytes to bytes. Out of range values yield 0,
// which Validate rejects.
func uploadBytes(mb int64) int64 {
	if mb <= 0 || mb > MaxUploadMB {
		return 0
	}
	return mb << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
