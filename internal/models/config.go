package models

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Scheduler  SchedulerConfig
	Settlement SettlementConfig
	External   ExternalConfig
	Server     ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// SchedulerConfig holds settlement sweep settings
type SchedulerConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// SettlementConfig holds trade and accrual settlement settings
type SettlementConfig struct {
	Currency      string
	AccrualWindow time.Duration
	ProductsFile  string
}

// ExternalConfig holds collaborator endpoints. Empty values disable the
// corresponding backend and fall back to the local implementation.
type ExternalConfig struct {
	Timeout       time.Duration
	PriceFeedURL  string
	StaticPrices  string
	QuoteAsset    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NatsURL       string
	NatsSubject   string
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr string
	Mode string
}
