package config

const EnvPrefix = "PNPTV"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Canonical env var names, kept in one place so tests and deploy docs
// do not drift from the struct tags.
const (
	EnvAppEnv            = "PNPTV_APP_ENV"
	EnvPort              = "PNPTV_APP_PORT"
	EnvRedisURL          = "PNPTV_REDIS_URL"
	EnvBoldSecretKey     = "PNPTV_BOLD_SECRET_KEY"
	EnvPayPalClientID    = "PNPTV_PAYPAL_CLIENT_ID"
	EnvPayPalSecret      = "PNPTV_PAYPAL_SECRET"
	EnvSlackWebhookURL   = "PNPTV_SLACK_WEBHOOK_URL"
	EnvReplayRetention   = "PNPTV_REPLAY_RETENTION"
	EnvAdmissionLimit    = "PNPTV_ADMISSION_LIMIT"
	EnvPayPalMaxStale    = "PNPTV_PAYPAL_MAX_STALENESS"
	EnvPayPalSkipCertChk = "PNPTV_PAYPAL_SKIP_CERT_VERIFICATION"
)
