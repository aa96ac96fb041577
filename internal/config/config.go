package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Output    OutputConfig
	RateLimit RateLimitConfig
	LocalAI   BackendConfig
	ComfyUI   BackendConfig
	UVR5      BackendConfig
	RVC       BackendConfig
	R2        R2Config
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OutputConfig controls where fetched artifacts land on disk.
type OutputConfig struct {
	Dir string
}

type RateLimitConfig struct {
	SpeechPerMin int
	JobsPerHour  int
}

// BackendConfig is the per-backend surface the orchestration core consumes:
// base URL, per-request timeout, per-job deadline and poll interval. Timeouts
// are in seconds. PollInterval and JobDeadline are meaningless for the
// synchronous speech backend and left at defaults there.
type BackendConfig struct {
	BaseURL      string
	Timeout      int
	PollInterval int
	JobDeadline  int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("output.dir", "OUTPUT_DIR")
	_ = viper.BindEnv("ratelimit.speech_per_min", "RATELIMIT_SPEECH_PER_MIN")
	_ = viper.BindEnv("ratelimit.jobs_per_hour", "RATELIMIT_JOBS_PER_HOUR")
	_ = viper.BindEnv("localai.base_url", "LOCALAI_BASE_URL")
	_ = viper.BindEnv("localai.timeout", "LOCALAI_TIMEOUT")
	_ = viper.BindEnv("comfyui.base_url", "COMFYUI_BASE_URL")
	_ = viper.BindEnv("comfyui.timeout", "COMFYUI_TIMEOUT")
	_ = viper.BindEnv("comfyui.poll_interval", "COMFYUI_POLL_INTERVAL")
	_ = viper.BindEnv("comfyui.job_deadline", "COMFYUI_JOB_DEADLINE")
	_ = viper.BindEnv("uvr5.base_url", "UVR5_BASE_URL")
	_ = viper.BindEnv("uvr5.timeout", "UVR5_TIMEOUT")
	_ = viper.BindEnv("uvr5.poll_interval", "UVR5_POLL_INTERVAL")
	_ = viper.BindEnv("uvr5.job_deadline", "UVR5_JOB_DEADLINE")
	_ = viper.BindEnv("rvc.base_url", "RVC_BASE_URL")
	_ = viper.BindEnv("rvc.timeout", "RVC_TIMEOUT")
	_ = viper.BindEnv("rvc.poll_interval", "RVC_POLL_INTERVAL")
	_ = viper.BindEnv("rvc.job_deadline", "RVC_JOB_DEADLINE")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("output.dir", defaultOutputDir())
	viper.SetDefault("ratelimit.speech_per_min", 30)
	viper.SetDefault("ratelimit.jobs_per_hour", 60)

	// Speech generation backend, synchronous lightweight requests
	viper.SetDefault("localai.base_url", "http://localhost:8080")
	viper.SetDefault("localai.timeout", 60)

	// Workflow engine
	viper.SetDefault("comfyui.base_url", "http://localhost:8188")
	viper.SetDefault("comfyui.timeout", 120)
	viper.SetDefault("comfyui.poll_interval", 2)
	viper.SetDefault("comfyui.job_deadline", 300)

	// Stem separator runs heavyweight jobs, longer deadline
	viper.SetDefault("uvr5.base_url", "http://localhost:5000")
	viper.SetDefault("uvr5.timeout", 120)
	viper.SetDefault("uvr5.poll_interval", 2)
	viper.SetDefault("uvr5.job_deadline", 600)

	// Voice converter
	viper.SetDefault("rvc.base_url", "http://localhost:6000")
	viper.SetDefault("rvc.timeout", 120)
	viper.SetDefault("rvc.poll_interval", 1)
	viper.SetDefault("rvc.job_deadline", 300)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Output: OutputConfig{
			Dir: viper.GetString("output.dir"),
		},
		RateLimit: RateLimitConfig{
			SpeechPerMin: viper.GetInt("ratelimit.speech_per_min"),
			JobsPerHour:  viper.GetInt("ratelimit.jobs_per_hour"),
		},
		LocalAI: backendConfig("localai"),
		ComfyUI: backendConfig("comfyui"),
		UVR5:    backendConfig("uvr5"),
		RVC:     backendConfig("rvc"),
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
	}

	return cfg, nil
}

func backendConfig(key string) BackendConfig {
	return BackendConfig{
		BaseURL:      viper.GetString(key + ".base_url"),
		Timeout:      viper.GetInt(key + ".timeout"),
		PollInterval: viper.GetInt(key + ".poll_interval"),
		JobDeadline:  viper.GetInt(key + ".job_deadline"),
	}
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "audiobridge_output"
	}
	return filepath.Join(home, "audiobridge", "output")
}
