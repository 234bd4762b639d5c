// Package config содержит логику чтения конфигурации сервиса cardkeeper.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса cardkeeper.
// Параметры движка проекций (смещение первого списания платы, окно допуска)
// намеренно вынесены в конфигурацию, а не зашиты в движок.
type Config struct {
	RunAddress             string `env:"RUN_ADDRESS"`
	DatabaseURI            string `env:"DATABASE_URI"`
	TemplateServiceAddress string `env:"TEMPLATE_SERVICE_ADDRESS"`
	AuthSecret             string `env:"AUTH_SECRET"`
	Timezone               string `env:"TIMEZONE"`
	FirstRenewalMonths     int    `env:"FIRST_RENEWAL_MONTHS"`
	AdmissionWindowMonths  int    `env:"ADMISSION_WINDOW_MONTHS"`
	AdmissionLimit         int    `env:"ADMISSION_LIMIT"`
	TimelinePageSize       int    `env:"TIMELINE_PAGE_SIZE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.TemplateServiceAddress, "t", "", "card template catalog address")
	flag.StringVar(&cfg.AuthSecret, "s", "cardkeeper-secret", "secret key for auth cookies")
	flag.StringVar(&cfg.Timezone, "tz", "UTC", "IANA timezone for resolving the reference date")
	flag.IntVar(&cfg.FirstRenewalMonths, "first-renewal", 13, "months from open date to the first annual fee")
	flag.IntVar(&cfg.AdmissionWindowMonths, "window-months", 24, "admission window length in months")
	flag.IntVar(&cfg.AdmissionLimit, "admission-limit", 5, "admission window ceiling")
	flag.IntVar(&cfg.TimelinePageSize, "page-size", 50, "timeline history page size")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.TemplateServiceAddress != "" {
		cfg.TemplateServiceAddress = envCfg.TemplateServiceAddress
	}
	if envCfg.AuthSecret != "" {
		cfg.AuthSecret = envCfg.AuthSecret
	}
	if envCfg.Timezone != "" {
		cfg.Timezone = envCfg.Timezone
	}
	if envCfg.FirstRenewalMonths != 0 {
		cfg.FirstRenewalMonths = envCfg.FirstRenewalMonths
	}
	if envCfg.AdmissionWindowMonths != 0 {
		cfg.AdmissionWindowMonths = envCfg.AdmissionWindowMonths
	}
	if envCfg.AdmissionLimit != 0 {
		cfg.AdmissionLimit = envCfg.AdmissionLimit
	}
	if envCfg.TimelinePageSize != 0 {
		cfg.TimelinePageSize = envCfg.TimelinePageSize
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
