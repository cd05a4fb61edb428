package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// DefaultConfigPath is read when present; a missing file is not an error.
	DefaultConfigPath = "config.yaml"

	// DefaultAdminPassword backs the built-in admin hash when ADMIN_PASSWORD_HASH is unset.
	DefaultAdminPassword = "admin"
)

// Config is the full runtime configuration.
type Config struct {
	AppEnv    string `yaml:"appEnv"`
	Port      string `yaml:"port"`
	APIPrefix string `yaml:"apiPrefix"`
	LogLevel  string `yaml:"logLevel"`
	LogDir    string `yaml:"logDir"`

	DBDriver string `yaml:"dbDriver"`
	DBPath   string `yaml:"dbPath"`
	DBHost   string `yaml:"dbHost"`
	DBPort   string `yaml:"dbPort"`
	DBName   string `yaml:"dbName"`
	DBUser   string `yaml:"dbUser"`
	DBPass   string `yaml:"dbPass"`
	SeedFile string `yaml:"seedFile"`

	JWTKey            string   `yaml:"jwtKey"`
	SessionTTL        string   `yaml:"sessionTTL"`
	SessionCookie     string   `yaml:"sessionCookie"`
	AdminUsername     string   `yaml:"adminUsername"`
	AdminPasswordHash string   `yaml:"adminPasswordHash"`
	AllowedOrigins    []string `yaml:"allowedOrigins"`
	TrustedProxies    []string `yaml:"trustedProxies"`

	RedisAddr               string `yaml:"redisAddr"`
	RedisPassword           string `yaml:"redisPassword"`
	LoginRateLimitPerMinute int    `yaml:"loginRateLimitPerMinute"`

	SiteURL   string `yaml:"siteURL"`
	SiteName  string `yaml:"siteName"`
	PublicDir string `yaml:"publicDir"`
	AdminDir  string `yaml:"adminDir"`

	UploadMaxSize    int64    `yaml:"uploadMaxSize"`
	UploadDir        string   `yaml:"uploadDir"`
	UploadImageTypes []string `yaml:"uploadImageTypes"`
	UploadDocTypes   []string `yaml:"uploadDocTypes"`
	StorageBackend   string   `yaml:"storageBackend"`
	MinioEndpoint    string   `yaml:"minioEndpoint"`
	MinioAccessKey   string   `yaml:"minioAccessKey"`
	MinioSecretKey   string   `yaml:"minioSecretKey"`
	MinioBucket      string   `yaml:"minioBucket"`
	MinioUseSSL      bool     `yaml:"minioUseSSL"`
}

// Defaults mirrors the values the site shipped with.
func Defaults() Config {
	return Config{
		AppEnv:    EnvProduction,
		Port:      "8080",
		APIPrefix: "/api",
		LogLevel:  "info",
		LogDir:    "./logs",

		DBDriver: "sqlite3",
		DBPath:   "./data/authorsite.db",
		DBHost:   "localhost",
		DBPort:   "3306",
		DBName:   "silberhain_db",
		DBUser:   "silberhain_user",
		DBPass:   "secure_password_here",
		SeedFile: "./data/books.json",

		JWTKey:        "your-jwt-key-here-change-in-production",
		SessionTTL:    "24h",
		SessionCookie: "authorsite_session",
		AdminUsername: "admin",
		AllowedOrigins: []string{
			"https://matthias-silberhain.de",
			"https://www.matthias-silberhain.de",
			"http://localhost:3000",
			"http://localhost:8080",
		},

		LoginRateLimitPerMinute: 10,

		SiteURL:   "https://matthias-silberhain.de",
		SiteName:  "Matthias Silberhain",
		PublicDir: "./public",
		AdminDir:  "./admin",

		UploadMaxSize:    10 * 1024 * 1024,
		UploadDir:        "./uploads",
		UploadImageTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		UploadDocTypes:   []string{"application/pdf"},
		StorageBackend:   "local",
		MinioBucket:      "authorsite",
	}
}

// Load builds the config from defaults, the optional YAML file at path,
// a .env file in the working directory and finally the process environment.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config: %w", err)
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	applyEnv(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := map[string]*string{
		"APP_ENV":             &cfg.AppEnv,
		"PORT":                &cfg.Port,
		"API_PREFIX":          &cfg.APIPrefix,
		"LOG_LEVEL":           &cfg.LogLevel,
		"LOG_DIR":             &cfg.LogDir,
		"DB_DRIVER":           &cfg.DBDriver,
		"DB_PATH":             &cfg.DBPath,
		"DB_HOST":             &cfg.DBHost,
		"DB_PORT":             &cfg.DBPort,
		"DB_NAME":             &cfg.DBName,
		"DB_USER":             &cfg.DBUser,
		"DB_PASS":             &cfg.DBPass,
		"SEED_FILE":           &cfg.SeedFile,
		"JWT_KEY":             &cfg.JWTKey,
		"SESSION_TTL":         &cfg.SessionTTL,
		"SESSION_COOKIE":      &cfg.SessionCookie,
		"ADMIN_USERNAME":      &cfg.AdminUsername,
		"ADMIN_PASSWORD_HASH": &cfg.AdminPasswordHash,
		"REDIS_ADDR":          &cfg.RedisAddr,
		"REDIS_PASSWORD":      &cfg.RedisPassword,
		"SITE_URL":            &cfg.SiteURL,
		"SITE_NAME":           &cfg.SiteName,
		"PUBLIC_DIR":          &cfg.PublicDir,
		"ADMIN_DIR":           &cfg.AdminDir,
		"UPLOAD_DIR":          &cfg.UploadDir,
		"STORAGE_BACKEND":     &cfg.StorageBackend,
		"MINIO_ENDPOINT":      &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":    &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":    &cfg.MinioSecretKey,
		"MINIO_BUCKET":        &cfg.MinioBucket,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
	if v := os.Getenv("UPLOAD_IMAGE_TYPES"); v != "" {
		cfg.UploadImageTypes = splitCSV(v)
	}
	if v := os.Getenv("UPLOAD_DOC_TYPES"); v != "" {
		cfg.UploadDocTypes = splitCSV(v)
	}
	if v := os.Getenv("UPLOAD_MAX_SIZE"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.UploadMaxSize = n
		}
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
}

func validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	if !strings.HasPrefix(cfg.APIPrefix, "/") {
		return errors.New("config: apiPrefix must start with /")
	}
	if strings.TrimSpace(cfg.JWTKey) == "" {
		return errors.New("config: jwtKey is required")
	}
	if strings.TrimSpace(cfg.AdminUsername) == "" {
		return errors.New("config: adminUsername is required")
	}
	if _, err := cfg.SessionDuration(); err != nil {
		return err
	}
	if cfg.UploadMaxSize <= 0 {
		return errors.New("config: uploadMaxSize must be > 0")
	}
	if cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: loginRateLimitPerMinute must be >= 0")
	}
	switch cfg.StorageBackend {
	case "local":
	case "minio":
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minio backend needs minioEndpoint and minioBucket")
		}
	default:
		return fmt.Errorf("config: unknown storageBackend %q", cfg.StorageBackend)
	}
	return nil
}

// Production reports whether the app runs with production hardening.
func (c Config) Production() bool {
	return c.AppEnv == EnvProduction
}

// SessionDuration parses SessionTTL.
func (c Config) SessionDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("config: invalid sessionTTL: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("config: sessionTTL must be > 0")
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
