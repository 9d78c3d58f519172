package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig
	Auth     AuthConfig
	Features FeatureFlags
	LogLevel string
	// OrderLockTTL bounds how long an authorize attempt may hold an order.
	OrderLockTTL time.Duration
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers            []string
	OrdersTopic        string
	PaymentsTopic      string
	NotificationsTopic string
	ConsumerGroup      string
}

// GatewayConfig holds the card gateway credentials and endpoints.
type GatewayConfig struct {
	MerchantID     string
	MerchantKey    string
	Sandbox        bool
	APIURL         string
	QueryURL       string
	Timeout        time.Duration
	SoftDescriptor string
	RateRPS        int
	RateBurst      int
	// RateMaxWait caps how long a call queues on the outbound rate limiter.
	RateMaxWait time.Duration
}

const defaultGatewayTimeout = 30 * time.Second

// lockMargin covers the payment insert that follows the gateway answer.
const lockMargin = 5 * time.Second

// CallTimeout is the per-request HTTP timeout, defaulted when unset.
func (g GatewayConfig) CallTimeout() time.Duration {
	if g.Timeout <= 0 {
		return defaultGatewayTimeout
	}
	return g.Timeout
}

// CallBudget is the longest a single gateway call can take, limiter wait included.
func (g GatewayConfig) CallBudget() time.Duration {
	return g.CallTimeout() + g.RateMaxWait
}

const (
	cieloAPIURL          = "https://api.cieloecommerce.cielo.com.br"
	cieloQueryURL        = "https://apiquery.cieloecommerce.cielo.com.br"
	cieloSandboxAPIURL   = "https://apisandbox.cieloecommerce.cielo.com.br"
	cieloSandboxQueryURL = "https://apiquerysandbox.cieloecommerce.cielo.com.br"
)

// BaseURLs returns the transactional and query URLs, honoring overrides.
func (g GatewayConfig) BaseURLs() (api, query string) {
	api, query = cieloAPIURL, cieloQueryURL
	if g.Sandbox {
		api, query = cieloSandboxAPIURL, cieloSandboxQueryURL
	}
	if g.APIURL != "" {
		api = g.APIURL
	}
	if g.QueryURL != "" {
		query = g.QueryURL
	}
	return strings.TrimRight(api, "/"), strings.TrimRight(query, "/")
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type FeatureFlags struct {
	EnableOrderEvents          bool
	EnableOrderCaching         bool
	EnableRedisLock            bool
	EnableNotificationConsumer bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "acme"),
			Password:     getEnvString("DB_PASSWORD", "acme"),
			Name:         getEnvString("DB_NAME", "acme_storefront"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:            strings.Split(getEnvString("KAFKA_BROKERS", "localhost:9092"), ","),
			OrdersTopic:        getEnvString("KAFKA_ORDERS_TOPIC", "storefront.orders"),
			PaymentsTopic:      getEnvString("KAFKA_PAYMENTS_TOPIC", "storefront.payments"),
			NotificationsTopic: getEnvString("KAFKA_NOTIFICATIONS_TOPIC", "storefront.gateway-notifications"),
			ConsumerGroup:      getEnvString("KAFKA_CONSUMER_GROUP", "storefront-service"),
		},
		Gateway: GatewayConfig{
			MerchantID:     getEnvString("CIELO_MERCHANT_ID", ""),
			MerchantKey:    getEnvString("CIELO_MERCHANT_KEY", ""),
			Sandbox:        getEnvBool("CIELO_SANDBOX", false),
			APIURL:         getEnvString("CIELO_API_URL", ""),
			QueryURL:       getEnvString("CIELO_QUERY_URL", ""),
			Timeout:        getEnvDuration("CIELO_TIMEOUT", defaultGatewayTimeout),
			SoftDescriptor: getEnvString("CIELO_SOFT_DESCRIPTOR", "AcmeStore"),
			RateRPS:        getEnvInt("CIELO_RATE_RPS", 20),
			RateBurst:      getEnvInt("CIELO_RATE_BURST", 40),
			RateMaxWait:    getEnvDuration("CIELO_RATE_MAX_WAIT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvString("AUTH_JWT_SECRET", ""),
			Issuer:    getEnvString("AUTH_JWT_ISSUER", ""),
		},
		Features: FeatureFlags{
			EnableOrderEvents:          getEnvBool("FEATURE_ORDER_EVENTS", true),
			EnableOrderCaching:         getEnvBool("FEATURE_ORDER_CACHING", true),
			EnableRedisLock:            getEnvBool("FEATURE_REDIS_LOCK", true),
			EnableNotificationConsumer: getEnvBool("FEATURE_NOTIFICATION_CONSUMER", false),
		},
		LogLevel:     getEnvString("LOG_LEVEL", "info"),
		OrderLockTTL: getEnvDuration("ORDER_LOCK_TTL", 45*time.Second),
	}
}

// Validate checks settings that depend on each other. The order lock must
// outlive a whole authorize call, or a second attempt on the same order can
// reach the gateway while the first is still in flight.
func (c *Config) Validate() error {
	if c.OrderLockTTL <= 0 {
		return errors.New(errors.ErrConfiguration, "ORDER_LOCK_TTL must be positive")
	}
	if c.Gateway.RateMaxWait <= 0 {
		return errors.New(errors.ErrConfiguration, "CIELO_RATE_MAX_WAIT must be positive")
	}
	if need := c.Gateway.CallBudget() + lockMargin; c.OrderLockTTL < need {
		return errors.Newf(errors.ErrConfiguration,
			"ORDER_LOCK_TTL %s must be at least %s (CIELO_TIMEOUT + CIELO_RATE_MAX_WAIT + %s)",
			c.OrderLockTTL, need, lockMargin)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
