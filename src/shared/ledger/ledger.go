package ledger

import (
	"time"

	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/types"
)

// Ledger owns the wallet transaction table and the processed transfer
// markers. Wallet rows are append-only; a balance is the sum over them.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Balance(discordID string) (int64, error) {
	var balance int64
	err := l.db.Model(&types.WalletTransaction{}).
		Where("discord_id = ?", discordID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	return balance, err
}

func (l *Ledger) History(discordID string, limit int) ([]types.WalletTransaction, error) {
	var txns []types.WalletTransaction
	err := l.db.Where("discord_id = ?", discordID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// Debit appends a negative entry, e.g. the cost of an enqueued broadcast.
func (l *Ledger) Debit(discordID string, amount int64, reason string) error {
	return l.db.Create(&types.WalletTransaction{
		DiscordID: discordID,
		Amount:    -amount,
		Reason:    reason,
	}).Error
}

// IsProcessed reports whether a transfer message id was already applied.
func (l *Ledger) IsProcessed(messageID string) (bool, error) {
	var count int64
	err := l.db.Model(&types.ProcessedTransfer{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	return count > 0, err
}

// ApplyTransfer credits a wallet and records the idempotency marker in a
// single transaction. The unique index on message_id makes a concurrent
// duplicate fail the whole transaction, so a transfer can never credit
// twice.
func (l *Ledger) ApplyTransfer(discordID string, credits int64, reason, messageID string, rawAmount int64) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&types.WalletTransaction{
			DiscordID:   discordID,
			Amount:      credits,
			Reason:      reason,
			ReferenceID: messageID,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&types.ProcessedTransfer{
			MessageID:   messageID,
			DiscordID:   discordID,
			Amount:      rawAmount,
			ProcessedAt: time.Now(),
		}).Error
	})
}
