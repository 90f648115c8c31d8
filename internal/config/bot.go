package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	ServerURL    string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	APIKey       string `env:"API_KEY" envDefault:""`
	AgentName    string `env:"AGENT_NAME" envDefault:"drifter"`
	PollSeconds  int    `env:"POLL_SECONDS" envDefault:"3"`
	MaxGambleCut int64  `env:"MAX_GAMBLE_CUT" envDefault:"20"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
