package bootstrap

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration: defaults, then the YAML file,
// then environment overrides.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	CMSURL         string
	GraphQLPath    string
	CookieName     string
	JWTSecret      string
	UserCollection string
	CMSTimeout     time.Duration

	RedisURL     string
	KafkaBrokers []string
	EventTopics  map[string]string

	LoginPath       string
	RenderTimeout   time.Duration
	GlobalsCacheTTL time.Duration
	ProductCacheTTL time.Duration
	ReadinessPeriod time.Duration
	LogLevel        string
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	CMS struct {
		URL            string `yaml:"url"`
		GraphQLPath    string `yaml:"graphql_path"`
		CookieName     string `yaml:"cookie_name"`
		UserCollection string `yaml:"user_collection"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"cms"`
	Dependencies struct {
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Events struct {
		Topics map[string]string `yaml:"topics"`
	} `yaml:"events"`
	Pages struct {
		LoginPath              string `yaml:"login_path"`
		RenderTimeoutMS        int    `yaml:"render_timeout_ms"`
		GlobalsCacheTTLSeconds int    `yaml:"globals_cache_ttl_seconds"`
		ProductCacheTTLSeconds int    `yaml:"product_cache_ttl_seconds"`
	} `yaml:"pages"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:       "storefront",
		HTTPPort:        8080,
		GRPCPort:        9090,
		GraphQLPath:     "/api/graphql",
		CookieName:      "payload-token",
		UserCollection:  "users",
		CMSTimeout:      10 * time.Second,
		EventTopics:     map[string]string{},
		LoginPath:       "/login?unauthorized=account",
		RenderTimeout:   5 * time.Second,
		GlobalsCacheTTL: 5 * time.Minute,
		ProductCacheTTL: time.Minute,
		ReadinessPeriod: 15 * time.Second,
		LogLevel:        "info",
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.CMSURL = envOrDefault("CMS_URL", cfg.CMSURL)
	cfg.GraphQLPath = envOrDefault("CMS_GRAPHQL_PATH", cfg.GraphQLPath)
	cfg.CookieName = envOrDefault("CMS_COOKIE_NAME", cfg.CookieName)
	cfg.JWTSecret = envOrDefault("CMS_JWT_SECRET", cfg.JWTSecret)
	cfg.UserCollection = envOrDefault("CMS_USER_COLLECTION", cfg.UserCollection)
	cfg.CMSTimeout = time.Duration(envInt("CMS_TIMEOUT_SECONDS", int(cfg.CMSTimeout.Seconds()))) * time.Second
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	if topic := os.Getenv("KAFKA_TOPIC_ORDER_VIEWED"); topic != "" {
		cfg.EventTopics["storefront.order_viewed"] = topic
	}
	cfg.LoginPath = envOrDefault("LOGIN_PATH", cfg.LoginPath)
	cfg.RenderTimeout = time.Duration(envInt("RENDER_TIMEOUT_MS", int(cfg.RenderTimeout.Milliseconds()))) * time.Millisecond
	cfg.GlobalsCacheTTL = time.Duration(envInt("GLOBALS_CACHE_TTL_SECONDS", int(cfg.GlobalsCacheTTL.Seconds()))) * time.Second
	cfg.ProductCacheTTL = time.Duration(envInt("PRODUCT_CACHE_TTL_SECONDS", int(cfg.ProductCacheTTL.Seconds()))) * time.Second
	if envBool("CMS_SKIP_LOCAL_JWT", false) {
		cfg.JWTSecret = ""
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.LogLevel != "" {
		cfg.LogLevel = f.Service.LogLevel
	}
	if f.CMS.URL != "" {
		cfg.CMSURL = f.CMS.URL
	}
	if f.CMS.GraphQLPath != "" {
		cfg.GraphQLPath = f.CMS.GraphQLPath
	}
	if f.CMS.CookieName != "" {
		cfg.CookieName = f.CMS.CookieName
	}
	if f.CMS.UserCollection != "" {
		cfg.UserCollection = f.CMS.UserCollection
	}
	if f.CMS.TimeoutSeconds > 0 {
		cfg.CMSTimeout = time.Duration(f.CMS.TimeoutSeconds) * time.Second
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	for event, topic := range f.Events.Topics {
		cfg.EventTopics[event] = topic
	}
	if f.Pages.LoginPath != "" {
		cfg.LoginPath = f.Pages.LoginPath
	}
	if f.Pages.RenderTimeoutMS > 0 {
		cfg.RenderTimeout = time.Duration(f.Pages.RenderTimeoutMS) * time.Millisecond
	}
	if f.Pages.GlobalsCacheTTLSeconds > 0 {
		cfg.GlobalsCacheTTL = time.Duration(f.Pages.GlobalsCacheTTLSeconds) * time.Second
	}
	if f.Pages.ProductCacheTTLSeconds > 0 {
		cfg.ProductCacheTTL = time.Duration(f.Pages.ProductCacheTTLSeconds) * time.Second
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.CMSURL) == "" {
		return errors.New("config: cms url is required (CMS_URL)")
	}
	u, err := url.Parse(c.CMSURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: cms url %q must be an absolute http(s) url", c.CMSURL)
	}
	if c.HTTPPort <= 0 || c.GRPCPort <= 0 {
		return errors.New("config: http and grpc ports must be positive")
	}
	if c.RenderTimeout <= 0 {
		return errors.New("config: render timeout must be positive")
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		return fmt.Errorf("config: login path %q must be site-relative", c.LoginPath)
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
