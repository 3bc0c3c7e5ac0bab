package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Admission AdmissionConfig
	Replay    ReplayConfig
	Alerting  AlertingConfig
	Bold      BoldConfig
	PayPal    PayPalConfig
	Performer PerformerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PNPTV_APP_ENV" required:"true"`
	Port         string `envconfig:"PNPTV_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PNPTV_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PNPTV_LOG_WARN_STACK" default:"false"`
	PublicURL    string `envconfig:"PNPTV_PUBLIC_URL" default:"http://localhost:8080"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// RedisConfig is optional: when URL is empty the replay guard and the
// admission counters fall back to in-process stores.
type RedisConfig struct {
	URL          string        `envconfig:"PNPTV_REDIS_URL"`
	PoolSize     int           `envconfig:"PNPTV_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PNPTV_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PNPTV_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PNPTV_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PNPTV_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

// AdmissionConfig throttles inbound webhook traffic per client address.
// Known processor address prefixes get the larger trusted bucket.
type AdmissionConfig struct {
	Window          time.Duration `envconfig:"PNPTV_ADMISSION_WINDOW" default:"1m"`
	Limit           int           `envconfig:"PNPTV_ADMISSION_LIMIT" default:"50"`
	TrustedLimit    int           `envconfig:"PNPTV_ADMISSION_TRUSTED_LIMIT" default:"100"`
	TrustedPrefixes string        `envconfig:"PNPTV_ADMISSION_TRUSTED_PREFIXES" default:"181.78.23.,190.90.8."`
}

// TrustedPrefixList splits the configured comma separated address prefixes.
func (a AdmissionConfig) TrustedPrefixList() []string {
	return splitList(a.TrustedPrefixes)
}

// ReplayConfig governs the delivery-id cache. Retention is housekeeping,
// not a correctness boundary: entries older than the retention window are
// assumed to be outside every processor's redelivery horizon.
type ReplayConfig struct {
	Retention     time.Duration `envconfig:"PNPTV_REPLAY_RETENTION" default:"20m"`
	SweepInterval time.Duration `envconfig:"PNPTV_REPLAY_SWEEP_INTERVAL" default:"20m"`
}

type AlertingConfig struct {
	SecurityWebhookURL string        `envconfig:"PNPTV_SLACK_WEBHOOK_URL"`
	PaymentsWebhookURL string        `envconfig:"PNPTV_PAYMENTS_SLACK_WEBHOOK"`
	QueueSize          int           `envconfig:"PNPTV_ALERT_QUEUE_SIZE" default:"256"`
	Timeout            time.Duration `envconfig:"PNPTV_ALERT_TIMEOUT" default:"5s"`
}

func (a AlertingConfig) Configured() bool {
	return a.SecurityWebhookURL != "" || a.PaymentsWebhookURL != ""
}

type BoldConfig struct {
	Enabled         bool    `envconfig:"PNPTV_BOLD_ENABLED" default:"true"`
	SecretKey       string  `envconfig:"PNPTV_BOLD_SECRET_KEY"`
	PercentFee      float64 `envconfig:"PNPTV_BOLD_PERCENT_FEE" default:"0.0349"`
	FixedFee        int64   `envconfig:"PNPTV_BOLD_FIXED_FEE" default:"900"`
	Currencies      string  `envconfig:"PNPTV_BOLD_CURRENCIES" default:"COP,USD"`
	Countries       string  `envconfig:"PNPTV_BOLD_COUNTRIES" default:"CO"`
	CheckoutBaseURL string  `envconfig:"PNPTV_BOLD_CHECKOUT_URL" default:"https://checkout.bold.co/payment"`
}

func (b BoldConfig) Configured() bool {
	return strings.TrimSpace(b.SecretKey) != ""
}

func (b BoldConfig) CurrencyList() []string {
	return splitList(b.Currencies)
}

func (b BoldConfig) CountryList() []string {
	return splitList(b.Countries)
}

type PayPalConfig struct {
	Enabled    bool    `envconfig:"PNPTV_PAYPAL_ENABLED" default:"true"`
	ClientID   string  `envconfig:"PNPTV_PAYPAL_CLIENT_ID"`
	Secret     string  `envconfig:"PNPTV_PAYPAL_SECRET"`
	WebhookID  string  `envconfig:"PNPTV_PAYPAL_WEBHOOK_ID"`
	PercentFee float64 `envconfig:"PNPTV_PAYPAL_PERCENT_FEE" default:"0.029"`
	FixedFee   int64   `envconfig:"PNPTV_PAYPAL_FIXED_FEE" default:"30"`
	Currencies string  `envconfig:"PNPTV_PAYPAL_CURRENCIES" default:"USD,COP"`
	Countries  string  `envconfig:"PNPTV_PAYPAL_COUNTRIES" default:"US,CO"`

	// MaxStaleness bounds replay-via-delay: transmissions older than this
	// are rejected even when the signature checks out.
	MaxStaleness time.Duration `envconfig:"PNPTV_PAYPAL_MAX_STALENESS" default:"5m"`

	// SkipCertVerification disables the certificate-chain step in
	// development. Never enable outside dev; verification fails closed
	// when no verifier is wired.
	SkipCertVerification bool `envconfig:"PNPTV_PAYPAL_SKIP_CERT_VERIFICATION" default:"false"`
}

func (p PayPalConfig) Configured() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.Secret) != ""
}

func (p PayPalConfig) CurrencyList() []string {
	return splitList(p.Currencies)
}

func (p PayPalConfig) CountryList() []string {
	return splitList(p.Countries)
}

// PerformerConfig seeds the default performer on boot.
type PerformerConfig struct {
	DefaultName        string `envconfig:"PNPTV_DEFAULT_PERFORMER_NAME" default:"Demo Performer"`
	DefaultEmail       string `envconfig:"PNPTV_DEFAULT_PERFORMER_EMAIL" default:"demo@example.com"`
	DefaultPayPalEmail string `envconfig:"PNPTV_DEFAULT_PERFORMER_PAYPAL_EMAIL" default:"performer@paypal.com"`
	MinTipAmount       int64  `envconfig:"PNPTV_MIN_TIP_AMOUNT" default:"1000"`
	Currency           string `envconfig:"PNPTV_TIP_CURRENCY" default:"COP"`
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
