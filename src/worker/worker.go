package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/discord"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/queue"
	"github.com/broadcaster-pro/discord-broadcaster/src/worker/components/delivery"
	"github.com/broadcaster-pro/discord-broadcaster/src/worker/config"
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
	rdb := data.MustRedis(cfg.RedisURL)

	engine := delivery.New(
		queue.New(db),
		discord.NewGateway(),
		rdb,
		time.Duration(cfg.IdleInterval)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go engine.Run(ctx)

	log.Println("Broadcast worker is running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	cancel()
	log.Println("Broadcast worker stopped gracefully")
}
