package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment    DeploymentConfig    `validate:"required"`
	Server        ServerConfig        `validate:"required"`
	Logging       LoggingConfig       `validate:"required"`
	Postgres      PostgresConfig      `validate:"required"`
	Payments      PaymentsConfig      `validate:"required"`
	Fulfillment   FulfillmentConfig   `validate:"required"`
	Session       SessionConfig       `validate:"required"`
	Secrets       SecretsConfig       `validate:"required"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Notifications NotificationsConfig `mapstructure:"notifications" validate:"required"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Sentry        SentryConfig        `mapstructure:"sentry"`
	Pyroscope     PyroscopeConfig     `mapstructure:"pyroscope"`
	Cron          CronConfig          `mapstructure:"cron"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
}

// PaymentsConfig configures the payment provider integration
type PaymentsConfig struct {
	APIBaseURL         string        `mapstructure:"api_base_url" validate:"required"`
	WebhookSecret      string        `mapstructure:"webhook_secret"`
	SignatureTolerance time.Duration `mapstructure:"signature_tolerance"`
	LookupTimeout      time.Duration `mapstructure:"lookup_timeout"`
	LookupRetryMax     int           `mapstructure:"lookup_retry_max"`
	CredentialCacheTTL time.Duration `mapstructure:"credential_cache_ttl"`
}

// FulfillmentConfig bounds the provisioning call and its side effects
type FulfillmentConfig struct {
	ProvisionTimeout  time.Duration  `mapstructure:"provision_timeout"`
	SideEffectTimeout time.Duration  `mapstructure:"side_effect_timeout"`
	StaleAfter        time.Duration  `mapstructure:"stale_after"`
	Recovery          RecoveryConfig `mapstructure:"recovery"`
}

type RecoveryConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type SessionConfig struct {
	Secret string `mapstructure:"secret" validate:"required"`
	Issuer string `mapstructure:"issuer"`
}

type SecretsConfig struct {
	EncryptionKey string `mapstructure:"encryption_key" validate:"required"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// NotificationsConfig selects the bus used for post-fulfillment side effects
type NotificationsConfig struct {
	PubSub       types.PubSubType `mapstructure:"pubsub" validate:"required"`
	ClientTopic  string           `mapstructure:"client_topic" validate:"required"`
	CreditsTopic string           `mapstructure:"credits_topic" validate:"required"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ClientID      string   `mapstructure:"client_id"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type PyroscopeConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	ServerAddress   string   `mapstructure:"server_address"`
	ApplicationName string   `mapstructure:"application_name"`
	BasicAuthUser   string   `mapstructure:"basic_auth_user"`
	BasicAuthPass   string   `mapstructure:"basic_auth_password"`
	ProfileTypes    []string `mapstructure:"profile_types"`
	SampleRate      uint32   `mapstructure:"sample_rate"`
}

type CronConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type RateLimitConfig struct {
	PollPerSecond float64 `mapstructure:"poll_per_second"`
	PollBurst     int     `mapstructure:"poll_burst"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional and only used for local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/resellerdesk")

	v.SetEnvPrefix("RESELLERDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 45*time.Second)
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("payments.api_base_url", "https://api.mercadopago.com")
	v.SetDefault("payments.signature_tolerance", 300*time.Second)
	v.SetDefault("payments.lookup_timeout", 10*time.Second)
	v.SetDefault("payments.lookup_retry_max", 2)
	v.SetDefault("payments.credential_cache_ttl", 5*time.Minute)
	v.SetDefault("fulfillment.provision_timeout", 15*time.Second)
	v.SetDefault("fulfillment.side_effect_timeout", 30*time.Second)
	v.SetDefault("fulfillment.stale_after", 15*time.Minute)
	v.SetDefault("fulfillment.recovery.enabled", false)
	v.SetDefault("fulfillment.recovery.interval", 5*time.Minute)
	v.SetDefault("session.issuer", "resellerdesk")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("notifications.pubsub", types.MemoryPubSub)
	v.SetDefault("notifications.client_topic", "client.notification")
	v.SetDefault("notifications.credits_topic", "integration.credits_synced")
	v.SetDefault("kafka.client_id", "resellerdesk")
	v.SetDefault("kafka.consumer_group", "resellerdesk")
	v.SetDefault("ratelimit.poll_per_second", 1.0)
	v.SetDefault("ratelimit.poll_burst", 5)
	v.SetDefault("sentry.sample_rate", 0.1)
	v.SetDefault("pyroscope.application_name", "resellerdesk")
	v.SetDefault("pyroscope.sample_rate", 100)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a configuration for local development and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "resellerdesk",
			DBName:  "resellerdesk",
			SSLMode: "disable",
		},
		Payments: PaymentsConfig{
			APIBaseURL:         "https://api.mercadopago.com",
			SignatureTolerance: 300 * time.Second,
			LookupTimeout:      10 * time.Second,
			LookupRetryMax:     2,
			CredentialCacheTTL: 5 * time.Minute,
		},
		Fulfillment: FulfillmentConfig{
			ProvisionTimeout:  15 * time.Second,
			SideEffectTimeout: 30 * time.Second,
			StaleAfter:        15 * time.Minute,
			Recovery:          RecoveryConfig{Interval: 5 * time.Minute},
		},
		Session: SessionConfig{Issuer: "resellerdesk"},
		Cache:   CacheConfig{Enabled: true},
		Notifications: NotificationsConfig{
			PubSub:       types.MemoryPubSub,
			ClientTopic:  "client.notification",
			CreditsTopic: "integration.credits_synced",
		},
		RateLimit: RateLimitConfig{PollPerSecond: 1, PollBurst: 5},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetURL returns the DSN in url form, as expected by the migrate driver
func (c PostgresConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode,
	)
}
