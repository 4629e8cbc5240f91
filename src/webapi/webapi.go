package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
	"github.com/broadcaster-pro/discord-broadcaster/src/webapi/config"
	"github.com/broadcaster-pro/discord-broadcaster/src/webapi/webserver"
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

	router := webserver.New(cfg, db, rdb)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
