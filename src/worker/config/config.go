package config

import (
	"log"
	"os"
	"strconv"

	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
)

type Config struct {
	MySQLDSN     string
	RedisURL     string
	IdleInterval int // seconds between empty queue polls
}

func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	idle := 5
	if v := data.GetSetting("worker_idle_seconds"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			idle = n
		}
	}

	return Config{
		MySQLDSN:     getenv("MYSQL_DSN", "broadcaster:broadcaster@tcp(127.0.0.1:3306)/broadcaster"),
		RedisURL:     getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		IdleInterval: idle,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
