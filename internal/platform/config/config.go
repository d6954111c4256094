// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bursar/pkg/domain"
)

type Config struct {
	Addr string

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	AuditTopic   string

	JWTSigningKey string

	OverspendPolicy domain.OverspendPolicy

	// VPApprovalLimit is the amount above which only the Principal may
	// approve an expenditure.
	VPApprovalLimit decimal.Decimal

	// NearExhaustionRatio triggers a notification when an allocation's
	// remaining share falls to or below this fraction. Zero disables it.
	NearExhaustionRatio decimal.Decimal

	AuditInterval  time.Duration
	AuditBatchSize int

	LogLevel string
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:           getenv("ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       getenv("REDIS_URL", "redis://localhost:6379/0"),
		KafkaBrokers:   strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ","),
		AuditTopic:     getenv("AUDIT_TOPIC", "bursar.audit"),
		JWTSigningKey:  os.Getenv("JWT_SIGNING_KEY"),
		AuditBatchSize: 100,
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("JWT_SIGNING_KEY is required")
	}

	policy, err := domain.ParseOverspendPolicy(getenv("OVERSPEND_POLICY", "disallow"))
	if err != nil {
		return nil, fmt.Errorf("OVERSPEND_POLICY: %w", err)
	}
	cfg.OverspendPolicy = policy

	if cfg.VPApprovalLimit, err = decimal.NewFromString(getenv("VP_APPROVAL_LIMIT", "50000")); err != nil {
		return nil, fmt.Errorf("VP_APPROVAL_LIMIT: %w", err)
	}
	if cfg.NearExhaustionRatio, err = decimal.NewFromString(getenv("NEAR_EXHAUSTION_RATIO", "0.1")); err != nil {
		return nil, fmt.Errorf("NEAR_EXHAUSTION_RATIO: %w", err)
	}
	if cfg.AuditInterval, err = time.ParseDuration(getenv("AUDIT_INTERVAL", "2s")); err != nil {
		return nil, fmt.Errorf("AUDIT_INTERVAL: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
