package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Telephony  TelephonyConfig
	Classifier ClassifierConfig
	Routing    RoutingConfig
	Actions    ActionsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TelephonyConfig configures the voice-provider bridge.
// The capability token is a short-lived JWT scoped to one operator identity
// and one application endpoint; keep the TTL short.
type TelephonyConfig struct {
	AccountSID    string
	APIKeySID     string
	APIKeySecret  string
	AppEndpoint   string
	WebhookSecret string

	// MessagingFrom is the provisioned number automated replies are sent
	// from. Optional; without it the auto-reply sink stays unwired.
	MessagingFrom string

	CredentialTTL time.Duration
}

// ClassifierConfig configures the hosted classification service client.
//
// MinTextChars is a cost/latency guard: shorter messages are rejected locally
// without an external call. MaxPromptChars is a hard cap on the text copied
// into the request, independent of the source length.
type ClassifierConfig struct {
	BaseURL string
	APIKey  string
	Model   string

	Timeout        time.Duration
	MinTextChars   int
	MaxPromptChars int

	// MaxConcurrent caps in-flight classification calls per workspace (0 = no cap).
	MaxConcurrent int
}

// RoutingConfig points at the downstream systems routed interactions are
// handed to. Empty URLs leave the sink unwired; dispatch to an unwired sink
// is reported, not retried.
type RoutingConfig struct {
	PipelineURL string
	SupportURL  string
}

// ActionsConfig holds the follow-up derivation windows.
// Defaults are a product decision; they are env-tunable on purpose.
type ActionsConfig struct {
	// RebookGraceWindow is how long after a cancellation we wait for a
	// rebooking before surfacing a follow-up.
	RebookGraceWindow time.Duration

	// LeadStaleWindow is how long a sales-opportunity lead may sit without
	// pipeline movement before it escalates to high priority.
	LeadStaleWindow time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Telephony.AccountSID = strings.TrimSpace(os.Getenv("VOICE_ACCOUNT_SID"))
	c.Telephony.APIKeySID = strings.TrimSpace(os.Getenv("VOICE_API_KEY_SID"))
	c.Telephony.APIKeySecret = os.Getenv("VOICE_API_KEY_SECRET")
	c.Telephony.AppEndpoint = strings.TrimSpace(os.Getenv("VOICE_APP_ENDPOINT"))
	c.Telephony.WebhookSecret = os.Getenv("VOICE_WEBHOOK_SECRET")
	c.Telephony.CredentialTTL = mustDuration("VOICE_CREDENTIAL_TTL")
	c.Telephony.MessagingFrom = strings.TrimSpace(os.Getenv("VOICE_MESSAGING_FROM"))

	c.Classifier.BaseURL = strings.TrimSpace(os.Getenv("CLASSIFIER_BASE_URL"))
	c.Classifier.APIKey = os.Getenv("CLASSIFIER_API_KEY")
	c.Classifier.Model = strings.TrimSpace(os.Getenv("CLASSIFIER_MODEL"))
	c.Classifier.Timeout = mustDuration("CLASSIFIER_TIMEOUT")
	c.Classifier.MinTextChars = optionalInt("CLASSIFIER_MIN_TEXT_CHARS")
	c.Classifier.MaxPromptChars = optionalInt("CLASSIFIER_MAX_PROMPT_CHARS")
	c.Classifier.MaxConcurrent = optionalInt("CLASSIFIER_MAX_CONCURRENT")

	c.Routing.PipelineURL = strings.TrimSpace(os.Getenv("ROUTING_PIPELINE_URL"))
	c.Routing.SupportURL = strings.TrimSpace(os.Getenv("ROUTING_SUPPORT_URL"))

	c.Actions.RebookGraceWindow = mustDuration("ACTIONS_REBOOK_GRACE_WINDOW")
	c.Actions.LeadStaleWindow = mustDuration("ACTIONS_LEAD_STALE_WINDOW")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}

	if c.Telephony.AccountSID == "" {
		errs = append(errs, errors.New("VOICE_ACCOUNT_SID is required"))
	}
	if c.Telephony.APIKeySID == "" {
		errs = append(errs, errors.New("VOICE_API_KEY_SID is required"))
	}
	if c.Telephony.APIKeySecret == "" {
		errs = append(errs, errors.New("VOICE_API_KEY_SECRET is required"))
	}
	if c.Telephony.AppEndpoint == "" {
		errs = append(errs, errors.New("VOICE_APP_ENDPOINT is required"))
	}
	if c.Telephony.CredentialTTL <= 0 {
		c.Telephony.CredentialTTL = time.Hour
	}
	if c.Telephony.CredentialTTL > 24*time.Hour {
		errs = append(errs, fmt.Errorf("VOICE_CREDENTIAL_TTL must be at most 24h, got %s", c.Telephony.CredentialTTL))
	}

	if c.Classifier.BaseURL == "" {
		errs = append(errs, errors.New("CLASSIFIER_BASE_URL is required"))
	}
	if c.Classifier.APIKey == "" && c.IsProduction() {
		errs = append(errs, errors.New("CLASSIFIER_API_KEY is required in production"))
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = 10 * time.Second
	}
	if c.Classifier.MinTextChars <= 0 {
		c.Classifier.MinTextChars = 50
	}
	if c.Classifier.MaxPromptChars <= 0 {
		c.Classifier.MaxPromptChars = 2000
	}
	if c.Classifier.MaxPromptChars < c.Classifier.MinTextChars {
		errs = append(errs, fmt.Errorf("CLASSIFIER_MAX_PROMPT_CHARS (%d) must be >= CLASSIFIER_MIN_TEXT_CHARS (%d)",
			c.Classifier.MaxPromptChars, c.Classifier.MinTextChars))
	}
	if c.Classifier.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("CLASSIFIER_MAX_CONCURRENT must be >= 0, got %d", c.Classifier.MaxConcurrent))
	}

	if c.Actions.RebookGraceWindow <= 0 {
		c.Actions.RebookGraceWindow = 24 * time.Hour
	}
	if c.Actions.LeadStaleWindow <= 0 {
		c.Actions.LeadStaleWindow = 48 * time.Hour
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool { return c.App.Env == "production" }

func (c Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.App.Port) }

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
