package config

import (
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
)

type Config struct {
	Port          string
	MySQLDSN      string
	RedisURL      string
	JWTSecret     string
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	WebOrigin     string
	BroadcastCost int64 // credits debited per enqueued broadcast
}

func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	clientID := data.GetSetting("discord_client_id")
	if clientID == "" {
		clientID = os.Getenv("DISCORD_CLIENT_ID")
	}

	clientSecret := data.GetSetting("discord_client_secret")
	if clientSecret == "" {
		clientSecret = os.Getenv("DISCORD_CLIENT_SECRET")
	}

	return Config{
		Port:          getenv("PORT", "8080"),
		MySQLDSN:      getenv("MYSQL_DSN", "broadcaster:broadcaster@tcp(127.0.0.1:3306)/broadcaster"),
		RedisURL:      getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret:     getenv("JWT_SECRET", "dev-secret-change-me"),
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RedirectURI:   getenv("REDIRECT_URI", "http://localhost:8080/v1/auth/callback"),
		WebOrigin:     getenv("WEB_ORIGIN", "http://localhost:3000"),
		BroadcastCost: 1,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
