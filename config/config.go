package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort    int    `mapstructure:"http_port"`
	GRPCPort    int    `mapstructure:"grpc_port"`
	LogLevel    string `mapstructure:"log_level"`
	ServiceName string `mapstructure:"service_name"` // Used for consul registration

	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Session     SessionConfig     `mapstructure:"session"`
	Redis       RedisConfig       `mapstructure:"redis"`
	OpenLibrary OpenLibraryConfig `mapstructure:"openlibrary"`
	OAuth2      OAuth2Config      `mapstructure:"oauth2"`
	Consul      ConsulConfig      `mapstructure:"consul"`
	Admin       AdminConfig       `mapstructure:"admin"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // mysql, postgres or sqlite
	URL    string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
	CookieName string        `mapstructure:"cookie_name"`
}

type SessionConfig struct {
	Scope string `mapstructure:"scope"` // global or user
	Store string `mapstructure:"store"` // memory or redis
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type OpenLibraryConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type OAuth2Config struct {
	Google          OAuth2ClientConfig `mapstructure:"google"`
	SuccessRedirect string             `mapstructure:"success_redirect"`
}

type OAuth2ClientConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// Enabled reports whether the client has credentials configured.
func (c OAuth2ClientConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type ConsulConfig struct {
	Address     string `mapstructure:"address"`      // empty disables registration
	ServiceHost string `mapstructure:"service_host"` // address advertised to consul
}

// AdminConfig describes the system administrator seeded at startup.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// BindFlags registers the command line flags understood by Load.
func BindFlags(fs *pflag.FlagSet) *string {
	return fs.String("config", "", "path to config file (default ./config.yaml or ./config/config.yaml)")
}

// Load reads path (or config.yaml from the usual locations when empty),
// applies BMS_* environment overrides and fills in defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variable overrides, e.g. BMS_JWT_SECRET
	v.SetEnvPrefix("BMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "bms")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.url", "bms:bms@tcp(127.0.0.1:3306)/bms?charset=utf8mb4&parseTime=True&loc=Local")

	v.SetDefault("jwt.secret", "default-very-insecure-secret-key") // CHANGE THIS IN PRODUCTION
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("jwt.cookie_name", "bms")

	v.SetDefault("session.scope", "global")
	v.SetDefault("session.store", "memory")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")

	v.SetDefault("openlibrary.base_url", "https://openlibrary.org")
	v.SetDefault("openlibrary.timeout", 5*time.Second)
	v.SetDefault("openlibrary.cache_size", 256)
	v.SetDefault("openlibrary.cache_ttl", 10*time.Minute)

	v.SetDefault("oauth2.google.client_id", "")
	v.SetDefault("oauth2.google.client_secret", "")
	v.SetDefault("oauth2.google.redirect_url", "http://localhost:8080/login/oauth2/code/google")
	v.SetDefault("oauth2.success_redirect", "/swagger-ui/index.html")

	v.SetDefault("consul.address", "")
	v.SetDefault("consul.service_host", "127.0.0.1")

	v.SetDefault("admin.username", "systemadmin1")
	v.SetDefault("admin.email", "admin.1@email.com")
	v.SetDefault("admin.password", "adminPass")
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Session.Scope {
	case "global", "user":
	default:
		return fmt.Errorf("config: session.scope must be global or user, got %q", c.Session.Scope)
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: session.store must be memory or redis, got %q", c.Session.Store)
	}
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.JWT.Expiration <= 0 {
		return errors.New("config: jwt.expiration must be positive")
	}
	return nil
}
