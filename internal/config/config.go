package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort              = 8080
	defaultHTTPTimeout       = 10 * time.Second
	defaultStoreTimeout      = 5 * time.Second
	defaultWorkers           = 16
	defaultConversationAgent = "database"
	defaultConversationTitle = "WhatsApp Conversation"
)

// Config is built once at startup and passed by value to every constructor.
type Config struct {
	Port                int
	MessagesTable       string
	DirectoryBaseURL    string
	ConversationBaseURL string
	ChannelBaseURL      string
	ParamPrefix         string
	HTTPTimeout         time.Duration
	StoreTimeout        time.Duration
	WebhookBackoff      time.Duration
	Workers             int
	ConversationAgent   string
	ConversationTitle   string
}

// Load reads the configuration through getenv (usually os.Getenv).
func Load(getenv func(string) string) (Config, error) {
	if getenv == nil {
		return Config{}, errors.New("config: getenv must not be nil")
	}
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		MessagesTable:       env("MESSAGES_TABLE"),
		DirectoryBaseURL:    strings.TrimRight(env("DIRECTORY_BASE_URL"), "/"),
		ConversationBaseURL: strings.TrimRight(env("CONVERSATION_BASE_URL"), "/"),
		ChannelBaseURL:      strings.TrimRight(env("CHANNEL_BASE_URL"), "/"),
		ParamPrefix:         strings.TrimRight(env("PARAM_PREFIX"), "/"),
		ConversationAgent:   orDefault(env("CONVERSATION_AGENT"), defaultConversationAgent),
		ConversationTitle:   orDefault(env("CONVERSATION_TITLE"), defaultConversationTitle),
	}

	for key, v := range map[string]string{
		"MESSAGES_TABLE":        cfg.MessagesTable,
		"DIRECTORY_BASE_URL":    cfg.DirectoryBaseURL,
		"CONVERSATION_BASE_URL": cfg.ConversationBaseURL,
		"CHANNEL_BASE_URL":      cfg.ChannelBaseURL,
	} {
		if v == "" {
			return Config{}, fmt.Errorf("config: %s is required", key)
		}
	}

	var err error
	if cfg.Port, err = intVar(env, "PORT", defaultPort); err != nil {
		return Config{}, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: PORT out of range: %d", cfg.Port)
	}
	if cfg.Workers, err = intVar(env, "WORKERS", defaultWorkers); err != nil {
		return Config{}, err
	}
	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("config: WORKERS must be positive: %d", cfg.Workers)
	}
	if cfg.HTTPTimeout, err = durationVar(env, "HTTP_TIMEOUT", defaultHTTPTimeout); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = durationVar(env, "STORE_TIMEOUT", defaultStoreTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WebhookBackoff, err = durationVar(env, "WEBHOOK_BACKOFF", 0); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout <= 0 || cfg.StoreTimeout <= 0 {
		return Config{}, errors.New("config: timeouts must be positive")
	}
	if cfg.WebhookBackoff < 0 {
		return Config{}, errors.New("config: WEBHOOK_BACKOFF must not be negative")
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func intVar(env func(string) string, key string, def int) (int, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return n, nil
}

func durationVar(env func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
