package queue

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/types"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, data.Migrate(db))
	return New(db)
}

func testJob(created time.Time) *types.BroadcastJob {
	return &types.BroadcastJob{
		UserID:        1,
		DiscordUserID: "100",
		GuildID:       "200",
		Message:       "hello",
		BotToken:      "token",
		DelaySeconds:  0,
		CreatedAt:     created,
	}
}

func TestNextPendingReturnsOldest(t *testing.T) {
	q := newTestQueue(t)

	older := testJob(time.Now().Add(-time.Hour))
	newer := testJob(time.Now())
	require.NoError(t, q.Add(older))
	require.NoError(t, q.Add(newer))

	job, err := q.NextPending()
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, older.ID, job.ID)
	assert.Equal(t, types.JobPending, job.Status)
}

func TestNextPendingEmptyQueue(t *testing.T) {
	q := newTestQueue(t)

	job, err := q.NextPending()
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestUpdateStatusStampsTimestamps(t *testing.T) {
	q := newTestQueue(t)
	job := testJob(time.Now())
	require.NoError(t, q.Add(job))

	require.NoError(t, q.UpdateStatus(job.ID, types.JobProcessing, StatusUpdate{}))
	got, err := q.Get(job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, q.UpdateStatus(job.ID, types.JobCompleted, StatusUpdate{}))
	got, err = q.Get(job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
}

func TestUpdateStatusPartialFieldsDoNotClobber(t *testing.T) {
	q := newTestQueue(t)
	job := testJob(time.Now())
	require.NoError(t, q.Add(job))

	total := 50
	require.NoError(t, q.UpdateStatus(job.ID, types.JobProcessing, StatusUpdate{TotalMembers: &total}))

	progress, sent, failed := 20, 8, 2
	require.NoError(t, q.UpdateStatus(job.ID, types.JobProcessing, StatusUpdate{
		Progress:    &progress,
		SentCount:   &sent,
		FailedCount: &failed,
	}))

	got, err := q.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.TotalMembers, "total_members must survive a checkpoint update")
	assert.Equal(t, 20, got.Progress)
	assert.Equal(t, 8, got.SentCount)
	assert.Equal(t, 2, got.FailedCount)
	assert.LessOrEqual(t, got.SentCount+got.FailedCount, got.TotalMembers)
}

func TestStatusNeverRegresses(t *testing.T) {
	q := newTestQueue(t)
	job := testJob(time.Now())
	require.NoError(t, q.Add(job))

	require.NoError(t, q.UpdateStatus(job.ID, types.JobProcessing, StatusUpdate{}))
	require.NoError(t, q.UpdateStatus(job.ID, types.JobCompleted, StatusUpdate{}))

	assert.Error(t, q.UpdateStatus(job.ID, types.JobProcessing, StatusUpdate{}))
	assert.Error(t, q.UpdateStatus(job.ID, types.JobPending, StatusUpdate{}))
	assert.Error(t, q.UpdateStatus(job.ID, types.JobFailed, StatusUpdate{}))

	got, err := q.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, got.Status)
}

func TestListForUserAndActive(t *testing.T) {
	q := newTestQueue(t)

	mine := testJob(time.Now().Add(-time.Minute))
	require.NoError(t, q.Add(mine))
	other := testJob(time.Now())
	other.DiscordUserID = "999"
	require.NoError(t, q.Add(other))

	require.NoError(t, q.UpdateStatus(other.ID, types.JobProcessing, StatusUpdate{}))

	jobs, err := q.ListForUser("100", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, mine.ID, jobs[0].ID)

	active, err := q.ListActive()
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, q.UpdateStatus(other.ID, types.JobFailed, StatusUpdate{}))
	active, err = q.ListActive()
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestDelete(t *testing.T) {
	q := newTestQueue(t)
	job := testJob(time.Now())
	require.NoError(t, q.Add(job))
	require.NoError(t, q.Delete(job.ID))

	_, err := q.Get(job.ID)
	assert.Error(t, err)
}
