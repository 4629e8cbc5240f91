package types

import "time"

// Job status lifecycle. Transitions only move forward:
// pending -> processing -> completed | failed.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Registered users (Discord OAuth)
type User struct {
	ID            uint64 `gorm:"primaryKey"`
	DiscordID     string `gorm:"size:64;uniqueIndex;not null"`
	Username      string `gorm:"size:64;not null"`
	Discriminator string `gorm:"size:8"`
	AvatarURL     string `gorm:"size:256"`
	CreatedAt     time.Time
}

// Queued broadcasts
type BroadcastJob struct {
	ID             uint64 `gorm:"primaryKey"`
	UserID         uint64 `gorm:"not null"`
	DiscordUserID  string `gorm:"size:64;index;not null"`
	GuildID        string `gorm:"size:64;not null"`
	Message        string `gorm:"type:text;not null"`
	TargetType     string `gorm:"size:16;default:all"`
	DelaySeconds   int    `gorm:"default:2"`
	EnableMentions bool   `gorm:"default:false"`
	BotToken       string `gorm:"size:128;not null"`
	Status         string `gorm:"size:16;index;default:pending"`
	Progress       int    `gorm:"default:0"`
	TotalMembers   int    `gorm:"default:0"`
	SentCount      int    `gorm:"default:0"`
	FailedCount    int    `gorm:"default:0"`
	ErrorMessage   string `gorm:"size:512"`
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

func (BroadcastJob) TableName() string { return "broadcast_queue" }

// Wallet ledger. Append-only; balance is the sum over amounts.
type WalletTransaction struct {
	ID          uint64 `gorm:"primaryKey"`
	DiscordID   string `gorm:"size:64;index;not null"`
	Amount      int64  `gorm:"not null"`
	Reason      string `gorm:"size:256"`
	ReferenceID string `gorm:"size:64"` // external message id that caused the credit
	CreatedAt   time.Time
}

// Idempotency markers for externally observed transfers
type ProcessedTransfer struct {
	ID          uint64 `gorm:"primaryKey"`
	MessageID   string `gorm:"size:64;uniqueIndex;not null"`
	DiscordID   string `gorm:"size:64;not null"`
	Amount      int64  `gorm:"not null"`
	ProcessedAt time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}
