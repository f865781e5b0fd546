package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, relative to the working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	SMTPHost     string `yaml:"smtpHost"`
	SMTPPort     int    `yaml:"smtpPort"`
	SMTPUsername string `yaml:"smtpUsername"`
	SMTPPassword string `yaml:"smtpPassword"`
	SMTPFrom     string `yaml:"smtpFrom"`
	SMTPTimeout  string `yaml:"smtpTimeout"`

	UploadDir         string   `yaml:"uploadDir"`
	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`
	AllowedExtensions []string `yaml:"allowedExtensions"`

	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioBucket        string `yaml:"minioBucket"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`
	MinioPresignExpiry string `yaml:"minioPresignExpiry"`

	RedisAddr                string   `yaml:"redisAddr"`
	RedisPassword            string   `yaml:"redisPassword"`
	SignupRateLimitPerMinute int      `yaml:"signupRateLimitPerMinute"`
	SigninRateLimitPerMinute int      `yaml:"signinRateLimitPerMinute"`
	ClaimRateLimitPerMinute  int      `yaml:"claimRateLimitPerMinute"`
	TrustedProxyCIDRs        []string `yaml:"trustedProxyCidrs"`
	CORSAllowedOrigins       []string `yaml:"corsAllowedOrigins"`
	ShutdownTimeout          string   `yaml:"shutdownTimeout"`
}

// Load reads config from path (defaults to config.yaml), then applies
// environment overrides. A missing file is not an error when the
// environment supplies the required settings.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setList := func(dst *[]string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = splitList(v)
		}
	}

	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "FINDIT_LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")

	setString(&cfg.SMTPHost, "SMTP_HOST")
	setInt(&cfg.SMTPPort, "SMTP_PORT")
	setString(&cfg.SMTPUsername, "SMTP_USERNAME")
	setString(&cfg.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.SMTPFrom, "SMTP_FROM")
	setString(&cfg.SMTPTimeout, "SMTP_TIMEOUT")
	// EMAIL_USER/EMAIL_PASS are the credential names used by existing .env files.
	if cfg.SMTPUsername == "" {
		setString(&cfg.SMTPUsername, "EMAIL_USER")
	}
	if cfg.SMTPPassword == "" {
		setString(&cfg.SMTPPassword, "EMAIL_PASS")
	}

	setString(&cfg.UploadDir, "FINDIT_UPLOAD_DIR")
	if v := os.Getenv("FINDIT_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	setList(&cfg.AllowedExtensions, "FINDIT_ALLOWED_EXTENSIONS")

	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	setString(&cfg.MinioPresignExpiry, "MINIO_PRESIGN_EXPIRY")

	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.SignupRateLimitPerMinute, "FINDIT_SIGNUP_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.SigninRateLimitPerMinute, "FINDIT_SIGNIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.ClaimRateLimitPerMinute, "FINDIT_CLAIM_RATE_LIMIT_PER_MINUTE")
	setList(&cfg.TrustedProxyCIDRs, "FINDIT_TRUSTED_PROXY_CIDRS")
	setList(&cfg.CORSAllowedOrigins, "FINDIT_CORS_ALLOWED_ORIGINS")
	setString(&cfg.ShutdownTimeout, "FINDIT_SHUTDOWN_TIMEOUT")
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "5000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if port, err := strconv.Atoi(cfg.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("config: invalid port %q", cfg.Port)
	}
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" && cfg.SMTPUsername == "" {
		return errors.New("config: smtpFrom or smtpUsername is required when smtpHost is set")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioBucket == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return errors.New("config: minioBucket, minioAccessKey and minioSecretKey are required with minioEndpoint")
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.SigninRateLimitPerMinute < 0 || cfg.ClaimRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	for name, raw := range map[string]string{
		"smtpTimeout":        cfg.SMTPTimeout,
		"minioPresignExpiry": cfg.MinioPresignExpiry,
		"shutdownTimeout":    cfg.ShutdownTimeout,
	} {
		if _, err := ParseDuration(raw, 0); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}

// ParseDuration parses an optional duration string, returning def when empty.
func ParseDuration(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid duration %q: must be >= 0", raw)
	}
	return dur, nil
}

// baseWriteTimeout covers request decoding, database work and the response.
const baseWriteTimeout = 30 * time.Second

// HTTPWriteTimeout is the server write deadline. Approving a claim sends
// two messages in sequence, each bounded by smtpTimeout, so the deadline
// leaves room for both on top of the base budget.
func HTTPWriteTimeout(smtpTimeout time.Duration) time.Duration {
	if smtpTimeout <= 0 {
		return baseWriteTimeout
	}
	return baseWriteTimeout + 2*smtpTimeout
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
