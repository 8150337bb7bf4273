package broker

import (
	"os"
	"strings"
)

type Config struct {
	Address   string
	Namespace string
}

func LoadConfig() Config {
	cfg := Config{
		Address:   strings.TrimSpace(os.Getenv("TEMPORAL_ADDRESS")),
		Namespace: strings.TrimSpace(os.Getenv("TEMPORAL_NAMESPACE")),
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	return cfg
}
