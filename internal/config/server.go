package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	// Required unless PERSIST_ENABLED=false; main checks the combination.
	PostgresDSN string `env:"POSTGRES_DSN"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	WorldSeed      int64  `env:"WORLD_SEED" envDefault:"1"`
	TickIntervalMs int    `env:"TICK_INTERVAL_MS" envDefault:"1000"`
	TuningPath     string `env:"TUNING_PATH"`

	// When false the world runs purely in memory with no write-through;
	// used for local development without a database.
	PersistEnabled bool `env:"PERSIST_ENABLED" envDefault:"true"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
