package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/spf13/viper"
)

type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a lib/pq connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	WithdrawalsTopic string   `mapstructure:"withdrawals_topic"`
	RecoveriesTopic  string   `mapstructure:"recoveries_topic"`
	// How often undelivered payouts are retried from the outbox
	RelayInterval time.Duration `mapstructure:"relay_interval"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	PriceTTL time.Duration `mapstructure:"price_ttl"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LimitsConfig struct {
	GlobalCapUSD     string `mapstructure:"global_cap_usd"`
	PerTxLimitUSD    string `mapstructure:"per_tx_limit_usd"`
	MaxTrackedAssets int    `mapstructure:"max_tracked_assets"`
}

type RolesConfig struct {
	Owners   []string `mapstructure:"owners"`
	Admins   []string `mapstructure:"admins"`
	Recovery []string `mapstructure:"recovery"`
}

type TokensConfig struct {
	MetadataURL string           `mapstructure:"metadata_url"`
	Decimals    map[string]int32 `mapstructure:"decimals"`
}

type PriceFeedConfig struct {
	Asset  string `mapstructure:"asset"`
	Source string `mapstructure:"source"`
	Scaled bool   `mapstructure:"scaled"`
}

type Config struct {
	ServiceName string            `mapstructure:"service_name"`
	Env         string            `mapstructure:"env"`
	LogLevel    string            `mapstructure:"log_level"`
	GRPC        GRPCConfig        `mapstructure:"grpc"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	DB          DBConfig          `mapstructure:"db"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Roles       RolesConfig       `mapstructure:"roles"`
	Tokens      TokensConfig      `mapstructure:"tokens"`
	PriceFeeds  []PriceFeedConfig `mapstructure:"price_feeds"`
}

// Load reads configuration from path (KIPU_CONFIG or config.yaml when empty)
// with KIPU_* environment overrides, e.g. KIPU_LIMITS_GLOBAL_CAP_USD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KIPU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = os.Getenv("KIPU_CONFIG")
	}
	if path == "" {
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "kipubank")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 8080)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8081)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "kipubank")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.withdrawals_topic", "custody.withdrawals")
	v.SetDefault("kafka.recoveries_topic", "custody.recoveries")
	v.SetDefault("kafka.relay_interval", "5s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "kipubank:price:")
	v.SetDefault("redis.price_ttl", "10s")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("limits.global_cap_usd", "10000.00")
	v.SetDefault("limits.per_tx_limit_usd", "1000.00")
	v.SetDefault("limits.max_tracked_assets", 64)
	v.SetDefault("roles.owners", []string{})
	v.SetDefault("roles.admins", []string{})
	v.SetDefault("roles.recovery", []string{})
	v.SetDefault("tokens.metadata_url", "")
}

// Validate checks the values the service cannot start without
func (c *Config) Validate() error {
	if c.GRPC.Port <= 0 || c.HTTP.Port <= 0 {
		return errors.New("grpc.port and http.port must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka brokers required")
	}
	if c.Kafka.WithdrawalsTopic == "" || c.Kafka.RecoveriesTopic == "" {
		return errors.New("kafka topics required")
	}
	if c.Kafka.RelayInterval <= 0 {
		return errors.New("kafka.relay_interval must be positive")
	}
	if c.Limits.MaxTrackedAssets < 0 {
		return errors.New("limits.max_tracked_assets cannot be negative")
	}
	if _, err := c.GlobalCap(); err != nil {
		return err
	}
	if _, err := c.PerTxLimit(); err != nil {
		return err
	}
	if _, err := c.RoleSeed(); err != nil {
		return err
	}
	if len(c.Roles.Owners) == 0 {
		return errors.New("roles.owners requires at least one address")
	}
	if _, err := c.TokenDecimals(); err != nil {
		return err
	}
	for i, feed := range c.PriceFeeds {
		if _, err := domain.ParseAsset(feed.Asset); err != nil {
			return fmt.Errorf("price_feeds[%d].asset: %w", i, err)
		}
		if strings.TrimSpace(feed.Source) == "" {
			return fmt.Errorf("price_feeds[%d].source is required", i)
		}
	}
	return nil
}

// GlobalCap returns the configured cap on total custodied value
func (c *Config) GlobalCap() (domain.USD, error) {
	return parsePositiveUSD("limits.global_cap_usd", c.Limits.GlobalCapUSD)
}

// PerTxLimit returns the configured per-withdrawal ceiling
func (c *Config) PerTxLimit() (domain.USD, error) {
	return parsePositiveUSD("limits.per_tx_limit_usd", c.Limits.PerTxLimitUSD)
}

// RoleSeed parses the configured role members
func (c *Config) RoleSeed() (map[domain.Role][]domain.Address, error) {
	seed := make(map[domain.Role][]domain.Address, 3)
	groups := []struct {
		role  domain.Role
		key   string
		addrs []string
	}{
		{domain.RoleOwner, "roles.owners", c.Roles.Owners},
		{domain.RoleAdmin, "roles.admins", c.Roles.Admins},
		{domain.RoleRecovery, "roles.recovery", c.Roles.Recovery},
	}
	for _, g := range groups {
		for _, s := range g.addrs {
			addr, err := domain.ParseAddress(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", g.key, err)
			}
			seed[g.role] = append(seed[g.role], addr)
		}
	}
	return seed, nil
}

// TokenDecimals parses the statically declared token precisions
func (c *Config) TokenDecimals() (map[domain.Address]int32, error) {
	out := make(map[domain.Address]int32, len(c.Tokens.Decimals))
	for s, d := range c.Tokens.Decimals {
		addr, err := domain.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("tokens.decimals: %w", err)
		}
		if d < 0 || d > 255 {
			return nil, fmt.Errorf("tokens.decimals: %s has out of range precision %d", s, d)
		}
		out[addr] = d
	}
	return out, nil
}

func parsePositiveUSD(key, value string) (domain.USD, error) {
	usd, err := domain.ParseUSD(value)
	if err != nil {
		return domain.USD{}, fmt.Errorf("%s: %w", key, err)
	}
	if usd.Cmp(domain.USD{}) <= 0 {
		return domain.USD{}, fmt.Errorf("%s must be positive", key)
	}
	return usd, nil
}
