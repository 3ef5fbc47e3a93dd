package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the api and worker processes.
// Values come from env; a local .env file is loaded first when present.
// No business logic should depend on raw environment variables.
type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Twilio       TwilioConfig
	NATS         NATSConfig
	Storage      StorageConfig
	LLM          LLMConfig
	Campaign     CampaignConfig
	Conversation ConversationConfig
	Call         CallConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable origin used in provider webhook URLs.
	PublicBaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// AuthConfig covers operator tokens for the admin API and tenant API key hashing.
type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration

	// APIKeyPepper is mixed into tenant API key hashes.
	APIKeyPepper string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string

	// ValidateSignatures enables X-Twilio-Signature checks on webhooks.
	ValidateSignatures bool
}

type NATSConfig struct {
	URL    string
	Token  string
	Stream string
}

type StorageConfig struct {
	Bucket       string
	SignedURLTTL time.Duration
}

type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type CampaignConfig struct {
	BatchSize    int
	SendInterval time.Duration

	// RecheckOptOut re-reads the opt-out ledger for each recipient at send time.
	RecheckOptOut bool

	// SharedPacing coordinates per-number send pacing across workers through redis.
	SharedPacing bool

	WorkerConcurrency int
}

type ConversationConfig struct {
	TTL          time.Duration
	HistoryLimit int
}

type CallConfig struct {
	RingTimeout    time.Duration
	InputTimeout   time.Duration
	MaxMenuRetries int
	MaxAITurns     int
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

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
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.APIKeyPepper = os.Getenv("API_KEY_PEPPER")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	{
		b, err := optionalBool("TWILIO_VALIDATE_SIGNATURES", true)
		b, parseErrs = appendParseErrBool(parseErrs, b, err)
		c.Twilio.ValidateSignatures = b
	}

	c.NATS.URL = strings.TrimSpace(os.Getenv("NATS_URL"))
	c.NATS.Token = os.Getenv("NATS_TOKEN")
	c.NATS.Stream = strings.TrimSpace(os.Getenv("NATS_STREAM"))

	c.Storage.Bucket = strings.TrimSpace(os.Getenv("VOICEMAIL_BUCKET"))
	c.Storage.SignedURLTTL = mustDuration("VOICEMAIL_URL_TTL")

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	c.LLM.APIKey = os.Getenv("LLM_API_KEY")
	c.LLM.Model = strings.TrimSpace(os.Getenv("LLM_MODEL"))
	c.LLM.Timeout = mustDuration("LLM_TIMEOUT")

	{
		n, err := optionalInt("CAMPAIGN_BATCH_SIZE")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Campaign.BatchSize = n
	}
	c.Campaign.SendInterval = mustDuration("CAMPAIGN_SEND_INTERVAL")
	{
		b, err := optionalBool("CAMPAIGN_RECHECK_OPT_OUT", false)
		b, parseErrs = appendParseErrBool(parseErrs, b, err)
		c.Campaign.RecheckOptOut = b
	}
	{
		b, err := optionalBool("CAMPAIGN_SHARED_PACING", false)
		b, parseErrs = appendParseErrBool(parseErrs, b, err)
		c.Campaign.SharedPacing = b
	}
	{
		n, err := optionalInt("CAMPAIGN_WORKERS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Campaign.WorkerConcurrency = n
	}

	c.Conversation.TTL = mustDuration("CONVERSATION_TTL")
	{
		n, err := optionalInt("CONVERSATION_HISTORY_LIMIT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Conversation.HistoryLimit = n
	}

	c.Call.RingTimeout = mustDuration("CALL_RING_TIMEOUT")
	c.Call.InputTimeout = mustDuration("CALL_INPUT_TIMEOUT")
	{
		n, err := optionalInt("CALL_MAX_MENU_RETRIES")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Call.MaxMenuRetries = n
	}
	{
		n, err := optionalInt("CALL_MAX_AI_TURNS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Call.MaxAITurns = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
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
	if c.App.PublicBaseURL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("PUBLIC_BASE_URL is required in production"))
		} else {
			c.App.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
		}
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
		if c.Auth.APIKeyPepper == "" {
			errs = append(errs, errors.New("API_KEY_PEPPER is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.IsProduction() {
		if c.Twilio.AccountSID == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required in production"))
		}
		if c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required in production"))
		}
		if !c.Twilio.ValidateSignatures {
			errs = append(errs, errors.New("TWILIO_VALIDATE_SIGNATURES cannot be disabled in production"))
		}
	}

	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.Stream == "" {
		c.NATS.Stream = "CAMPAIGNS"
	}

	if c.Storage.Bucket == "" && c.IsProduction() {
		errs = append(errs, errors.New("VOICEMAIL_BUCKET is required in production"))
	}
	if c.Storage.SignedURLTTL <= 0 {
		c.Storage.SignedURLTTL = 15 * time.Minute
	}

	switch c.LLM.Provider {
	case "":
		// AI receptionist answers with the scripted fallback.
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("LLM_API_KEY is required when LLM_PROVIDER is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be one of openai, anthropic, got %q", c.LLM.Provider))
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 8 * time.Second
	}

	if c.Campaign.BatchSize == 0 {
		c.Campaign.BatchSize = 10
	}
	if c.Campaign.BatchSize < 1 || c.Campaign.BatchSize > 10 {
		errs = append(errs, fmt.Errorf("CAMPAIGN_BATCH_SIZE must be between 1 and 10, got %d", c.Campaign.BatchSize))
	}
	if c.Campaign.SendInterval <= 0 {
		c.Campaign.SendInterval = time.Second
	}
	if c.Campaign.WorkerConcurrency <= 0 {
		c.Campaign.WorkerConcurrency = 1
	}

	if c.Conversation.TTL <= 0 {
		c.Conversation.TTL = 7 * 24 * time.Hour
	}
	if c.Conversation.HistoryLimit <= 0 {
		c.Conversation.HistoryLimit = 20
	}

	if c.Call.RingTimeout <= 0 {
		c.Call.RingTimeout = 20 * time.Second
	}
	if c.Call.InputTimeout <= 0 {
		c.Call.InputTimeout = 6 * time.Second
	}
	if c.Call.MaxMenuRetries <= 0 {
		c.Call.MaxMenuRetries = 3
	}
	if c.Call.MaxAITurns <= 0 {
		c.Call.MaxAITurns = 6
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
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

// optionalInt returns 0 when unset so Validate can apply the default.
func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func optionalBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
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

func appendParseErrBool(errs []error, b bool, err error) (bool, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return b, errs
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
