package reconcile

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/discord"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/ledger"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/types"
)

const (
	testNotifier = "900"
	testReceiver = "555"
	testSender   = "111"
)

type fakeGateway struct {
	feed      []discord.FeedMessage
	feedErr   error
	delivered map[string][]string // user id -> dm bodies
}

func (f *fakeGateway) ListMembers(token, guildID string) ([]discord.Recipient, error) {
	return nil, nil
}

func (f *fakeGateway) OpenDirectChannel(token, userID string) (string, error) {
	return "dm-" + userID, nil
}

func (f *fakeGateway) SendMessage(token, channelID, content string) error {
	if f.delivered == nil {
		f.delivered = make(map[string][]string)
	}
	user := channelID[len("dm-"):]
	f.delivered[user] = append(f.delivered[user], content)
	return nil
}

func (f *fakeGateway) RecentMessages(token, channelID string, limit int) ([]discord.FeedMessage, error) {
	if f.feedErr != nil {
		return nil, f.feedErr
	}
	return f.feed, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, data.Migrate(db))
	return db
}

func newTestEngine(db *gorm.DB, gw *fakeGateway) *Engine {
	return New(Config{
		BotToken:      "tok",
		FeedChannelID: "feed",
		NotifierID:    testNotifier,
		ReceiverID:    testReceiver,
		CreditRate:    500,
		WalletURL:     "https://example.com/wallet",
		LoginURL:      "https://example.com/login",
	}, gw, db, ledger.New(db))
}

func registerSender(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&types.User{DiscordID: testSender, Username: "payer"}).Error)
}

func transferMsg(id string, amount int64) discord.FeedMessage {
	return discord.FeedMessage{
		ID:       id,
		AuthorID: testNotifier,
		Content:  fmt.Sprintf("✅ <@%s> transferred %d credits to <@%s>", testSender, amount, testReceiver),
	}
}

func countRows(t *testing.T, db *gorm.DB) (txns, markers int64) {
	t.Helper()
	require.NoError(t, db.Model(&types.WalletTransaction{}).Count(&txns).Error)
	require.NoError(t, db.Model(&types.ProcessedTransfer{}).Count(&markers).Error)
	return
}

func TestTransferCreditsWallet(t *testing.T) {
	db := newTestDB(t)
	registerSender(t, db)
	gw := &fakeGateway{feed: []discord.FeedMessage{transferMsg("1001", 5000)}}
	e := newTestEngine(db, gw)

	require.NoError(t, e.checkFeed())

	balance, err := ledger.New(db).Balance(testSender)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance, "5000 raw at 500 per credit")

	require.Len(t, gw.delivered[testSender], 1)
	assert.Contains(t, gw.delivered[testSender][0], "Payment Successful")
}

func TestBelowRateYieldsZeroCredits(t *testing.T) {
	db := newTestDB(t)
	registerSender(t, db)
	gw := &fakeGateway{feed: []discord.FeedMessage{transferMsg("1001", 499)}}
	e := newTestEngine(db, gw)

	require.NoError(t, e.checkFeed())

	balance, err := ledger.New(db).Balance(testSender)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	// Still recorded, so the transfer can never be replayed for more.
	txns, markers := countRows(t, db)
	assert.Equal(t, int64(1), txns)
	assert.Equal(t, int64(1), markers)
}

// Re-observing the same message id (e.g. after a restart reset the
// high-water mark) must not credit twice.
func TestDuplicateMessageCreditsOnce(t *testing.T) {
	db := newTestDB(t)
	registerSender(t, db)
	feed := []discord.FeedMessage{transferMsg("1001", 5000)}

	first := newTestEngine(db, &fakeGateway{feed: feed})
	require.NoError(t, first.checkFeed())

	restarted := newTestEngine(db, &fakeGateway{feed: feed})
	require.NoError(t, restarted.checkFeed())

	txns, markers := countRows(t, db)
	assert.Equal(t, int64(1), txns)
	assert.Equal(t, int64(1), markers)
}

func TestHighWaterMarkSkipsSeenMessages(t *testing.T) {
	db := newTestDB(t)
	registerSender(t, db)
	gw := &fakeGateway{feed: []discord.FeedMessage{transferMsg("1001", 5000)}}
	e := newTestEngine(db, gw)

	require.NoError(t, e.checkFeed())
	require.NoError(t, e.checkFeed())

	txns, markers := countRows(t, db)
	assert.Equal(t, int64(1), txns)
	assert.Equal(t, int64(1), markers)
}

func TestUnresolvableSenderIsDropped(t *testing.T) {
	db := newTestDB(t)
	registerSender(t, db)
	gw := &fakeGateway{feed: []discord.FeedMessage{{
		ID:       "1001",
		AuthorID: testNotifier,
		Content:  fmt.Sprintf("✅ transferred 5000 credits to <@%s>", testReceiver),
	}}}
	e := newTestEngine(db, gw)

	require.NoError(t, e.checkFeed())

	txns, markers := countRows(t, db)
	assert.Equal(t, int64(0), txns)
	assert.Equal(t, int64(0), markers)
}

func TestForeignRecipientIsIgnored(t *testing.T) {
	db := newTestDB(t)
	registerSender(t, db)
	gw := &fakeGateway{feed: []discord.FeedMessage{{
		ID:       "1001",
		AuthorID: testNotifier,
		Content:  fmt.Sprintf("✅ <@%s> transferred 5000 credits to <@777>", testSender),
	}}}
	e := newTestEngine(db, gw)

	require.NoError(t, e.checkFeed())

	txns, markers := countRows(t, db)
	assert.Equal(t, int64(0), txns)
	assert.Equal(t, int64(0), markers)
	assert.Empty(t, gw.delivered)
}

func TestNonNotifierAuthorIsIgnored(t *testing.T) {
	db := newTestDB(t)
	registerSender(t, db)
	msg := transferMsg("1001", 5000)
	msg.AuthorID = "someone-else"
	gw := &fakeGateway{feed: []discord.FeedMessage{msg}}
	e := newTestEngine(db, gw)

	require.NoError(t, e.checkFeed())

	txns, _ := countRows(t, db)
	assert.Equal(t, int64(0), txns)
}

func TestUnregisteredSenderGetsRegistrationNotice(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{feed: []discord.FeedMessage{transferMsg("1001", 5000)}}
	e := newTestEngine(db, gw)

	require.NoError(t, e.checkFeed())

	txns, markers := countRows(t, db)
	assert.Equal(t, int64(0), txns)
	assert.Equal(t, int64(0), markers, "unregistered transfers are not queued for retry")

	require.Len(t, gw.delivered[testSender], 1)
	assert.Contains(t, gw.delivered[testSender][0], "Registration Required")
}

func TestFeedErrorIsNotFatal(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{feedErr: fmt.Errorf("HTTP 500")}
	e := newTestEngine(db, gw)

	assert.Error(t, e.checkFeed())
}
