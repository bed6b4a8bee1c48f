// Package config содержит логику чтения конфигурации витрины магазина.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации витрины магазина.
type Config struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	CommerceAPIAddress string `env:"COMMERCE_API_ADDRESS"`
	StateDir           string `env:"STATE_DIR"`
	PaymentPublicKey   string `env:"PAYMENT_PUBLIC_KEY"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения; переменные окружения имеют приоритет.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envAPIAddress := cfg.CommerceAPIAddress
	envStateDir := cfg.StateDir
	envPaymentKey := cfg.PaymentPublicKey

	flag.StringVar(&cfg.RunAddress, "a", "localhost:3000", "address and port for HTTP server")
	flag.StringVar(&cfg.CommerceAPIAddress, "c", "http://localhost:8080", "commerce API address")
	flag.StringVar(&cfg.StateDir, "s", ".storefront", "directory for persisted session state")
	flag.StringVar(&cfg.PaymentPublicKey, "p", "", "payment widget publishable key")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envAPIAddress != "" {
		cfg.CommerceAPIAddress = envAPIAddress
	}
	if envStateDir != "" {
		cfg.StateDir = envStateDir
	}
	if envPaymentKey != "" {
		cfg.PaymentPublicKey = envPaymentKey
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:3000"
	}

	return cfg, nil
}
