// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageBadger   = "badger"
	StorageMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Events    EventsConfig    `mapstructure:"events"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Log       LogConfig       `mapstructure:"log"`
	Account   AccountConfig   `mapstructure:"account"`
	RNG       RNGConfig       `mapstructure:"rng"`
	Games     GamesConfig     `mapstructure:"games"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// StorageConfig selects the account store.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	BadgerPath string `mapstructure:"badger_path"`
}

// EventsConfig holds the NATS bet-event stream configuration.
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AccountConfig holds new-account defaults.
type AccountConfig struct {
	InitialBalance string `mapstructure:"initial_balance"`
	HistoryLimit   int    `mapstructure:"history_limit"`
}

// RNGConfig holds the randomness seed. Zero means a fresh seed per run.
type RNGConfig struct {
	Seed uint64 `mapstructure:"seed"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	Dice    DiceConfig    `mapstructure:"dice"`
	Mines   MinesConfig   `mapstructure:"mines"`
	Crash   CrashConfig   `mapstructure:"crash"`
	LaneHop LaneHopConfig `mapstructure:"lanehop"`
	Plinko  PlinkoConfig  `mapstructure:"plinko"`
}

// DiceConfig holds dice game configuration.
type DiceConfig struct {
	HouseEdge float64 `mapstructure:"house_edge"`
}

// MinesConfig holds mines game configuration.
type MinesConfig struct {
	Tiles int `mapstructure:"tiles"`
}

// CrashConfig holds crash game configuration.
type CrashConfig struct {
	GrowthRate   float64       `mapstructure:"growth_rate"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// LaneHopConfig holds lane-hop game configuration.
type LaneHopConfig struct {
	RTP float64 `mapstructure:"rtp"`
}

// PlinkoConfig holds plinko game configuration.
type PlinkoConfig struct {
	Mode string `mapstructure:"mode"`
	Rows int    `mapstructure:"rows"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Balance parses the configured initial balance.
func (a *AccountConfig) Balance() (decimal.Decimal, error) {
	b, err := decimal.NewFromString(a.InitialBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid account.initial_balance %q: %w", a.InitialBalance, err)
	}
	if !b.IsPositive() {
		return decimal.Zero, fmt.Errorf("account.initial_balance must be positive, got %s", a.InitialBalance)
	}
	return b, nil
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in configPath, the working directory and ./config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, STORAGE_DRIVER, GAMES_DICE_HOUSE_EDGE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can provide everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageBadger, StorageMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if _, err := c.Account.Balance(); err != nil {
		return err
	}
	if c.Games.Dice.HouseEdge < 0 || c.Games.Dice.HouseEdge >= 1 {
		return fmt.Errorf("games.dice.house_edge must be in [0, 1), got %v", c.Games.Dice.HouseEdge)
	}
	if c.Games.LaneHop.RTP <= 0 || c.Games.LaneHop.RTP >= 1 {
		return fmt.Errorf("games.lanehop.rtp must be in (0, 1), got %v", c.Games.LaneHop.RTP)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "stakesim")
	v.SetDefault("database.name", "stakesim")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("storage.driver", StorageBadger)
	v.SetDefault("storage.badger_path", "./data/badger")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.url", "nats://127.0.0.1:4222")
	v.SetDefault("events.subject", "stakesim.bets")

	v.SetDefault("log.level", "info")

	v.SetDefault("account.initial_balance", "1000")
	v.SetDefault("account.history_limit", 20)

	v.SetDefault("rng.seed", 0)

	v.SetDefault("games.dice.house_edge", 0.02)
	v.SetDefault("games.mines.tiles", 25)
	v.SetDefault("games.crash.growth_rate", 0.1)
	v.SetDefault("games.crash.tick_interval", "500ms")
	v.SetDefault("games.lanehop.rtp", 0.97)
	v.SetDefault("games.plinko.mode", "pegs")
	v.SetDefault("games.plinko.rows", 8)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
// An empty whitelist allows every chat.
func (c *Config) IsChatAllowed(chatID int64) bool {
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
