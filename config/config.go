package config

import (
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"hermannm.dev/wrap"
)

type Config struct {
	BaseConfig
	ClickHouse ClickHouse
	Redis      Redis
	Postgres   Postgres
	Counter    Counter
}

type BaseConfig struct {
	IsProduction bool `env:"PRODUCTION"`
	API          API
}

type API struct {
	Port string `env:"API_PORT"`
}

type ClickHouse struct {
	Address      string `env:"CLICKHOUSE_ADDRESS"`
	DatabaseName string `env:"CLICKHOUSE_DB_NAME"`
	Username     string `env:"CLICKHOUSE_USERNAME"`
	Password     string `env:"CLICKHOUSE_PASSWORD"`
	Debug        bool   `env:"CLICKHOUSE_DEBUG_ENABLED"`
}

type Redis struct {
	Address  string `env:"REDIS_ADDRESS"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
}

type Postgres struct {
	ConnectionString string `env:"POSTGRES_CONNECTION_STRING"`
}

type Counter struct {
	Enabled bool `env:"PLAYLIST_COUNTER_ENABLED" envDefault:"true"`
	// How often the scheduler looks for playlists due for a count recomputation.
	Interval time.Duration `env:"PLAYLIST_COUNTER_INTERVAL" envDefault:"5m"`
	// Minimum time between recomputations of the same playlist's count.
	Cooldown time.Duration `env:"PLAYLIST_COUNTER_COOLDOWN" envDefault:"1h"`
	// Counting is rolled out to teams with IDs up to this ceiling.
	MaxTeamID    int64         `env:"PLAYLIST_COUNTER_MAX_TEAM_ID" envDefault:"15000"`
	RecountAfter time.Duration `env:"PLAYLIST_COUNTER_RECOUNT_AFTER" envDefault:"2h"`
	BatchSize    int           `env:"PLAYLIST_COUNTER_BATCH_SIZE" envDefault:"500"`
}

func ReadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil {
		return Config{}, wrap.Error(err, "failed to load .env file")
	}

	parseOptions := env.Options{RequiredIfNoDef: true}

	var config Config

	if err := env.ParseWithOptions(&config.BaseConfig, parseOptions); err != nil {
		return Config{}, err
	}
	if err := env.ParseWithOptions(&config.ClickHouse, parseOptions); err != nil {
		return Config{}, err
	}
	if err := env.ParseWithOptions(&config.Redis, parseOptions); err != nil {
		return Config{}, err
	}
	if err := env.ParseWithOptions(&config.Postgres, parseOptions); err != nil {
		return Config{}, err
	}
	if err := env.ParseWithOptions(&config.Counter, parseOptions); err != nil {
		return Config{}, err
	}

	return config, nil
}
