package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageBackendLocal    = "local"
	StorageBackendFirebase = "firebase"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Session   SessionConfig
	JWT       JWTConfig
	Storage   StorageConfig
	CORS      CORSConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Env       string `envconfig:"APP_ENV" default:"development"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	// TrustedProxies lists the proxies whose X-Forwarded-For is believed.
	// Empty means the peer address is the client.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	URL        string `envconfig:"DATABASE_URL"`
	Driver     string `envconfig:"DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"storefront.db"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
}

type RedisConfig struct {
	URL         string        `envconfig:"REDIS_URL"`
	PoolSize    int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
}

type SessionConfig struct {
	CookieName  string        `envconfig:"SESSION_COOKIE_NAME" default:"storefront_session"`
	IdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
}

type JWTConfig struct {
	Secret string        `envconfig:"JWT_SECRET" required:"true"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"2h"`
}

type StorageConfig struct {
	Backend            string `envconfig:"STORAGE_BACKEND" default:"local"`
	WebRoot            string `envconfig:"WEB_ROOT" default:"wwwroot"`
	ProductImageFolder string `envconfig:"PRODUCT_IMAGE_FOLDER" default:"images/products"`
	FirebaseBucket     string `envconfig:"FIREBASE_STORAGE_BUCKET"`
	Credentials        string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type CORSConfig struct {
	FrontendURL string `envconfig:"FRONTEND_URL"`
	AdminURL    string `envconfig:"ADMIN_URL"`
}

// Origins returns the configured origins with empty entries dropped.
func (c CORSConfig) Origins() []string {
	var origins []string
	for _, o := range []string{c.FrontendURL, c.AdminURL} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

type AdminConfig struct {
	Email    string `envconfig:"ADMIN_EMAIL" default:"admin@storefront.local"`
	Password string `envconfig:"ADMIN_PASSWORD" default:"admin123"`
}

type RateLimitConfig struct {
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

func LoadEnv() error {
	// .env is optional; in production the variables are set directly.
	_ = godotenv.Load()
	return nil
}

// Load reads the typed configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	return &cfg, nil
}

// ValidateEnv checks that critical environment variables are set.
// Returns an error if any critical variable is missing.
func ValidateEnv() error {
	var missing []string

	if os.Getenv("JWT_SECRET") == "" {
		missing = append(missing, "JWT_SECRET")
	}
	driver := strings.ToLower(GetEnv("DB_DRIVER", DriverPostgres))
	if driver == DriverPostgres && os.Getenv("DATABASE_URL") == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("critical environment variables not set: %v", missing)
	}

	switch backend := strings.ToLower(GetEnv("STORAGE_BACKEND", StorageBackendLocal)); backend {
	case StorageBackendLocal:
	case StorageBackendFirebase:
		if os.Getenv("FIREBASE_STORAGE_BUCKET") == "" {
			return fmt.Errorf("FIREBASE_STORAGE_BUCKET is required when STORAGE_BACKEND=%s", backend)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", backend)
	}

	// Non-critical variables - log warnings but don't fail
	if os.Getenv("REDIS_URL") == "" {
		log.Println("WARNING: REDIS_URL not set - sessions are kept in process memory")
	}
	if os.Getenv("FRONTEND_URL") == "" {
		log.Println("WARNING: FRONTEND_URL not set - CORS may not work correctly")
	}
	if os.Getenv("ADMIN_PASSWORD") == "" {
		log.Println("WARNING: ADMIN_PASSWORD not set - default admin uses the built-in password")
	}

	return nil
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
