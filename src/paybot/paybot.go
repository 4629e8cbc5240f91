package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/broadcaster-pro/discord-broadcaster/src/paybot/components/reconcile"
	"github.com/broadcaster-pro/discord-broadcaster/src/paybot/config"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/discord"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/ledger"
)

func main() {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "broadcaster:broadcaster@tcp(127.0.0.1:3306)/broadcaster"
	}
	db := data.MustMySQL(mysqlDSN)

	if err := data.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	cfg := config.Load(db)
	if cfg.BotToken == "" {
		log.Fatal("DISCORD_TOKEN not set in database or environment")
	}

	engine := reconcile.New(reconcile.Config{
		BotToken:      cfg.BotToken,
		FeedChannelID: cfg.FeedChannelID,
		NotifierID:    cfg.NotifierID,
		ReceiverID:    cfg.ReceiverID,
		CreditRate:    cfg.CreditRate,
		WalletURL:     cfg.WalletURL,
		LoginURL:      cfg.LoginURL,
	}, discord.NewGateway(), db, ledger.New(db))

	ctx, cancel := context.WithCancel(context.Background())
	go engine.Run(ctx)

	log.Println("Payment bot is running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	cancel()
	log.Println("Payment bot stopped gracefully")
}
