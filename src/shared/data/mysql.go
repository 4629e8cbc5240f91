package data

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/types"
)

func MustMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	return db
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.User{},
		&types.BroadcastJob{},
		&types.WalletTransaction{},
		&types.ProcessedTransfer{},
		&types.Setting{},
	)
}
