package config

import (
	"fmt"
	"os"
	"strconv"
)

// StoreMemory as REDIS_URL selects the in-process store instead of Redis.
// Meant for local development and tests only: state does not survive a
// restart.
const StoreMemory = "memory"

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret string

	// Points each new wallet starts with.
	StartingBalance int64

	DiceMinBet int64
	DiceMaxBet int64
	CupsMinBet int64
	CupsMaxBet int64
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASSWORD", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.StartingBalance, err = getEnvInt64("STARTING_BALANCE", 1000); err != nil {
		return nil, err
	}
	if cfg.DiceMinBet, err = getEnvInt64("DICE_MIN_BET", 10); err != nil {
		return nil, err
	}
	if cfg.DiceMaxBet, err = getEnvInt64("DICE_MAX_BET", 1000); err != nil {
		return nil, err
	}
	if cfg.CupsMinBet, err = getEnvInt64("CUPS_MIN_BET", 10); err != nil {
		return nil, err
	}
	if cfg.CupsMaxBet, err = getEnvInt64("CUPS_MAX_BET", 1000); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-only-secret"
	}

	if cfg.DiceMinBet <= 0 || cfg.DiceMinBet > cfg.DiceMaxBet {
		return nil, fmt.Errorf("invalid dice bet range: %d..%d", cfg.DiceMinBet, cfg.DiceMaxBet)
	}
	if cfg.CupsMinBet <= 0 || cfg.CupsMinBet > cfg.CupsMaxBet {
		return nil, fmt.Errorf("invalid cups bet range: %d..%d", cfg.CupsMinBet, cfg.CupsMaxBet)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}
