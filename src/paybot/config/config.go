package config

import (
	"log"
	"os"
	"strconv"

	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
)

type Config struct {
	MySQLDSN      string
	BotToken      string
	FeedChannelID string
	NotifierID    string
	ReceiverID    string
	CreditRate    int64
	WalletURL     string
	LoginURL      string
}

func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	token := data.GetSetting("discord_token")
	if token == "" {
		token = os.Getenv("DISCORD_TOKEN")
	}

	feedChannel := data.GetSetting("probot_channel_id")
	if feedChannel == "" {
		feedChannel = getenv("PROBOT_CHANNEL_ID", "1319029928825589780")
	}

	notifier := data.GetSetting("probot_user_id")
	if notifier == "" {
		notifier = getenv("PROBOT_USER_ID", "282859044593598464")
	}

	receiver := data.GetSetting("receiver_user_id")
	if receiver == "" {
		receiver = getenv("RECEIVER_USER_ID", "675332512414695441")
	}

	rate := int64(500)
	if v := data.GetSetting("credit_rate"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rate = n
		}
	}

	return Config{
		MySQLDSN:      getenv("MYSQL_DSN", "broadcaster:broadcaster@tcp(127.0.0.1:3306)/broadcaster"),
		BotToken:      token,
		FeedChannelID: feedChannel,
		NotifierID:    notifier,
		ReceiverID:    receiver,
		CreditRate:    rate,
		WalletURL:     getenv("WALLET_URL", "https://broadcaster.example.com/wallet"),
		LoginURL:      getenv("LOGIN_URL", "https://broadcaster.example.com/login"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
