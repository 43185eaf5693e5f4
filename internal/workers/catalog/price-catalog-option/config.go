package pricecatalogoption

import "time"

type Config struct {
	Timeout      time.Duration
	IndexOnWrite bool
	OptionIndex  string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		OptionIndex: "catalog-options",
	}
}
