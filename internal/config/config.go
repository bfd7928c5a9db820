package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Provider ProviderConfig
	Crypto   CryptoConfig
	Auth     AuthConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NATSConfig struct {
	URL string
}

// ProviderConfig describes the external identity-verification provider and
// how callbacks/redirects are routed per environment. CallbackURLs and
// FrontendURLs are keyed by caller origin; unknown origins fall back to the
// Default* URLs.
type ProviderConfig struct {
	ResultURL      string
	RequestTimeout time.Duration
	UsageCode      string
	ServiceType    string
	TransferMode   string
	ClientPrefix   string
	SessionTTL     time.Duration

	CallbackURLs       map[string]string
	DefaultCallbackURL string
	FrontendURLs       map[string]string
	DefaultFrontendURL string
}

type CryptoConfig struct {
	ServiceID string
	Key       string // base64-encoded provider key material
}

type AuthConfig struct {
	JWTSigningKey string
}

type LogConfig struct {
	Level string
	JSON  bool
}

// clientPrefixPattern: 1-8 alphanumeric characters, embedded in every
// transaction ID issued by this deployment.
var clientPrefixPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,8}$`)

func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "identity")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", "0")

	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("provider.result_url", "https://scert.mobile-ok.com/gui/service/v1/result/request")
	v.SetDefault("provider.request_timeout", "30s")
	v.SetDefault("provider.usage_code", "01001")
	v.SetDefault("provider.service_type", "telcoAuth")
	v.SetDefault("provider.transfer_mode", "MOKToken")
	v.SetDefault("provider.client_prefix", "IVG")
	v.SetDefault("provider.session_ttl", "1h")
	v.SetDefault("provider.callback_urls", "http://localhost:3000=http://localhost:8080/verify/callback")
	v.SetDefault("provider.default_callback_url", "https://api.example.com/verify/callback")
	v.SetDefault("provider.frontend_urls", "http://localhost:3000=http://localhost:3000/verification/complete")
	v.SetDefault("provider.default_frontend_url", "https://app.example.com/verification/complete")

	v.SetDefault("crypto.service_id", "")
	v.SetDefault("crypto.key", "")

	v.SetDefault("auth.jwt_signing_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", "false")

	serverPort, err := strconv.Atoi(v.GetString("server.port"))
	if err != nil {
		return nil, fmt.Errorf("invalid server port: %w", err)
	}

	dbPort, err := strconv.Atoi(v.GetString("database.port"))
	if err != nil {
		return nil, fmt.Errorf("invalid database port: %w", err)
	}

	redisDB, err := strconv.Atoi(v.GetString("redis.db"))
	if err != nil {
		return nil, fmt.Errorf("invalid redis db: %w", err)
	}

	requestTimeout, err := time.ParseDuration(v.GetString("provider.request_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider request timeout: %w", err)
	}

	sessionTTL, err := time.ParseDuration(v.GetString("provider.session_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider session ttl: %w", err)
	}

	clientPrefix := v.GetString("provider.client_prefix")
	if !clientPrefixPattern.MatchString(clientPrefix) {
		return nil, fmt.Errorf("invalid provider client prefix %q: must be 1-8 alphanumeric characters", clientPrefix)
	}

	callbackURLs, err := parseOriginMap(v.GetString("provider.callback_urls"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider callback urls: %w", err)
	}

	frontendURLs, err := parseOriginMap(v.GetString("provider.frontend_urls"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider frontend urls: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     dbPort,
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       redisDB,
		},
		NATS: NATSConfig{
			URL: v.GetString("nats.url"),
		},
		Provider: ProviderConfig{
			ResultURL:          v.GetString("provider.result_url"),
			RequestTimeout:     requestTimeout,
			UsageCode:          v.GetString("provider.usage_code"),
			ServiceType:        v.GetString("provider.service_type"),
			TransferMode:       v.GetString("provider.transfer_mode"),
			ClientPrefix:       clientPrefix,
			SessionTTL:         sessionTTL,
			CallbackURLs:       callbackURLs,
			DefaultCallbackURL: v.GetString("provider.default_callback_url"),
			FrontendURLs:       frontendURLs,
			DefaultFrontendURL: v.GetString("provider.default_frontend_url"),
		},
		Crypto: CryptoConfig{
			ServiceID: v.GetString("crypto.service_id"),
			Key:       v.GetString("crypto.key"),
		},
		Auth: AuthConfig{
			JWTSigningKey: v.GetString("auth.jwt_signing_key"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			JSON:  v.GetBool("log.json"),
		},
	}, nil
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// parseOriginMap parses "origin=url,origin=url" pairs from a single env value.
func parseOriginMap(raw string) (map[string]string, error) {
	result := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return result, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed origin mapping %q", pair)
		}
		result[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return result, nil
}

// ResolveCallbackURL maps a caller origin to the provider callback URL for
// that environment. Unknown origins always get the canonical production URL
// so user input can never steer the redirect target.
func (p ProviderConfig) ResolveCallbackURL(origin string) string {
	if u, ok := p.CallbackURLs[origin]; ok {
		return u
	}
	return p.DefaultCallbackURL
}

// ResolveFrontendURL maps a caller origin to the front-end completion URL,
// with the same allow-list rule as ResolveCallbackURL.
func (p ProviderConfig) ResolveFrontendURL(origin string) string {
	if u, ok := p.FrontendURLs[origin]; ok {
		return u
	}
	return p.DefaultFrontendURL
}
