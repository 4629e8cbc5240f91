package reconcile

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/discord"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/ledger"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/types"
)

type Config struct {
	BotToken      string
	FeedChannelID string // channel ProBot posts transfer notices to
	NotifierID    string // ProBot's own account id
	ReceiverID    string // the service account transfers must target
	CreditRate    int64  // raw ProBot credits per broadcast credit
	MessageLimit  int
	PollInterval  time.Duration
	ErrorBackoff  time.Duration
	WalletURL     string
	LoginURL      string
}

// Engine polls the feed channel and credits wallets exactly once per
// observed transfer. The high-water mark is in-memory only; after a
// restart the last MessageLimit messages are re-scanned and the
// ProcessedTransfer table keeps re-runs idempotent.
type Engine struct {
	cfg     Config
	gateway discord.Gateway
	db      *gorm.DB
	ledger  *ledger.Ledger

	lastMessageID uint64
}

func New(cfg Config, gw discord.Gateway, db *gorm.DB, l *ledger.Ledger) *Engine {
	if cfg.CreditRate <= 0 {
		cfg.CreditRate = 500
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 10 * time.Second
	}
	return &Engine{cfg: cfg, gateway: gw, db: db, ledger: l}
}

// Run polls until ctx is cancelled. Feed errors back off and are never
// fatal.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("payment monitor started on channel %s", e.cfg.FeedChannelID)

	for {
		wait := e.cfg.PollInterval
		if err := e.checkFeed(); err != nil {
			log.Printf("payment monitor: %v", err)
			wait = e.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			log.Printf("payment monitor stopped")
			return
		case <-time.After(wait):
		}
	}
}

func (e *Engine) checkFeed() error {
	msgs, err := e.gateway.RecentMessages(e.cfg.BotToken, e.cfg.FeedChannelID, e.cfg.MessageLimit)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}

	// The feed returns newest first; walk oldest first so advancing the
	// mark never skips the rest of the batch.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		id, err := strconv.ParseUint(m.ID, 10, 64)
		if err != nil {
			continue
		}
		if id <= e.lastMessageID {
			continue
		}
		e.processMessage(m)
		e.lastMessageID = id
	}

	return nil
}

func (e *Engine) processMessage(m discord.FeedMessage) {
	if m.AuthorID != e.cfg.NotifierID {
		return
	}

	t, ok := parseTransfer(m)
	if !ok {
		return
	}

	if t.SenderID == "" {
		log.Printf("transfer %s: sender unattributable, dropping", m.ID)
		return
	}

	processed, err := e.ledger.IsProcessed(m.ID)
	if err != nil {
		log.Printf("transfer %s: idempotency check: %v", m.ID, err)
		return
	}
	if processed {
		return
	}

	if t.RecipientID != e.cfg.ReceiverID {
		return
	}

	var user types.User
	if err := e.db.Where("discord_id = ?", t.SenderID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			log.Printf("transfer %s: no account for %s, asking to register", m.ID, t.SenderID)
			e.notifyRegistration(t.SenderID)
			return
		}
		log.Printf("transfer %s: lookup sender %s: %v", m.ID, t.SenderID, err)
		return
	}

	credits := t.Amount / e.cfg.CreditRate
	reason := fmt.Sprintf("ProBot credit transfer - %d ProBot credits", t.Amount)
	if err := e.ledger.ApplyTransfer(t.SenderID, credits, reason, m.ID, t.Amount); err != nil {
		// No idempotency marker was written, so a later poll may retry.
		log.Printf("transfer %s: apply credit: %v", m.ID, err)
		e.notifyError(t.SenderID, err)
		return
	}

	e.notifyConfirmation(t.SenderID, t.Amount, credits)
	log.Printf("transfer %s: credited %d broadcast credits to %s (%d raw)", m.ID, credits, t.SenderID, t.Amount)
}
