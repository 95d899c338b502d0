package internal

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	LogLevel string
	Port     int
	BaseURL  string

	// DatabaseURL enables the Postgres settlement journal. Empty keeps
	// the journal in memory.
	DatabaseURL string

	// RedisURL enables server-side sessions. Empty keeps sessions in
	// encrypted cookies.
	RedisURL string

	// NATSURL enables settlement event publishing. Empty disables it.
	NATSURL string

	// EncryptionKey is the base64-encoded 32-byte key sealing session
	// cookies.
	EncryptionKey string

	// SecureCookies controls the Secure flag on session cookies. Off
	// only for plain-HTTP local development.
	SecureCookies bool

	// SessionTTLMinutes bounds server-side session lifetime.
	SessionTTLMinutes int

	Stripe   StripeConfig
	Commerce CommerceConfig
	Shipping ShippingConfig
}

type StripeConfig struct {
	SecretKey      string
	TimeoutSeconds int
}

type CommerceConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	TimeoutSeconds int
}

type ShippingConfig struct {
	// Currency is the lowercase ISO 4217 code all prices are in.
	Currency string

	// FreeShippingAbove is the subtotal at which shipping becomes free,
	// as a decimal string. Empty disables free shipping.
	FreeShippingAbove string
}

// NewConfig reads configuration from the environment, with a .env file as
// a development convenience. Environment variables win over .env values.
func NewConfig() (*Config, error) {
	// Missing .env is fine in production.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("secure_cookies", true)
	v.SetDefault("session_ttl_minutes", 120)
	v.SetDefault("stripe_timeout_seconds", 30)
	v.SetDefault("commerce_timeout_seconds", 15)
	v.SetDefault("currency", "usd")

	cfg := &Config{
		Env:               v.GetString("env"),
		LogLevel:          v.GetString("log_level"),
		Port:              v.GetInt("port"),
		BaseURL:           v.GetString("base_url"),
		DatabaseURL:       v.GetString("database_url"),
		RedisURL:          v.GetString("redis_url"),
		NATSURL:           v.GetString("nats_url"),
		EncryptionKey:     v.GetString("encryption_key"),
		SecureCookies:     v.GetBool("secure_cookies"),
		SessionTTLMinutes: v.GetInt("session_ttl_minutes"),
		Stripe: StripeConfig{
			SecretKey:      v.GetString("stripe_secret_key"),
			TimeoutSeconds: v.GetInt("stripe_timeout_seconds"),
		},
		Commerce: CommerceConfig{
			BaseURL:        v.GetString("commerce_base_url"),
			ConsumerKey:    v.GetString("commerce_consumer_key"),
			ConsumerSecret: v.GetString("commerce_consumer_secret"),
			TimeoutSeconds: v.GetInt("commerce_timeout_seconds"),
		},
		Shipping: ShippingConfig{
			Currency:          strings.ToLower(v.GetString("currency")),
			FreeShippingAbove: v.GetString("free_shipping_above"),
		},
	}

	if cfg.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.Commerce.BaseURL == "" {
		return nil, fmt.Errorf("COMMERCE_BASE_URL is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}

	return cfg, nil
}
