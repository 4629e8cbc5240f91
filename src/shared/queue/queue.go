package queue

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/types"
)

// Queue is the durable broadcast job store. The delivery worker is the
// only writer once a job leaves pending.
type Queue struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

// StatusUpdate carries the optional fields of an UpdateStatus call.
// Nil fields are left untouched on the row.
type StatusUpdate struct {
	Progress     *int
	TotalMembers *int
	SentCount    *int
	FailedCount  *int
	ErrorMessage *string
}

var statusRank = map[string]int{
	types.JobPending:    0,
	types.JobProcessing: 1,
	types.JobCompleted:  2,
	types.JobFailed:     2,
}

func (q *Queue) Add(job *types.BroadcastJob) error {
	if job.Status == "" {
		job.Status = types.JobPending
	}
	return q.db.Create(job).Error
}

// NextPending returns the oldest pending job, or nil when the queue is idle.
func (q *Queue) NextPending() (*types.BroadcastJob, error) {
	var job types.BroadcastJob
	err := q.db.Where("status = ?", types.JobPending).
		Order("created_at ASC").
		First(&job).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus moves a job to status and applies the supplied fields.
// Transitions never move backward: completed and failed are terminal, and
// a processing job cannot return to pending. Entering processing stamps
// started_at; entering a terminal status stamps completed_at.
func (q *Queue) UpdateStatus(id uint64, status string, upd StatusUpdate) error {
	if _, ok := statusRank[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}

	return q.db.Transaction(func(tx *gorm.DB) error {
		var job types.BroadcastJob
		if err := tx.First(&job, id).Error; err != nil {
			return err
		}

		if status != job.Status && statusRank[status] <= statusRank[job.Status] {
			return fmt.Errorf("job %d: illegal transition %s -> %s", id, job.Status, status)
		}

		updates := map[string]interface{}{"status": status}
		if upd.Progress != nil {
			updates["progress"] = *upd.Progress
		}
		if upd.TotalMembers != nil {
			updates["total_members"] = *upd.TotalMembers
		}
		if upd.SentCount != nil {
			updates["sent_count"] = *upd.SentCount
		}
		if upd.FailedCount != nil {
			updates["failed_count"] = *upd.FailedCount
		}
		if upd.ErrorMessage != nil {
			updates["error_message"] = *upd.ErrorMessage
		}

		now := time.Now()
		if status == types.JobProcessing && job.Status != types.JobProcessing {
			updates["started_at"] = now
		}
		if status == types.JobCompleted || status == types.JobFailed {
			updates["completed_at"] = now
		}

		return tx.Model(&types.BroadcastJob{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (q *Queue) Get(id uint64) (*types.BroadcastJob, error) {
	var job types.BroadcastJob
	if err := q.db.First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *Queue) ListForUser(discordUserID string, limit int) ([]types.BroadcastJob, error) {
	var jobs []types.BroadcastJob
	err := q.db.Where("discord_user_id = ?", discordUserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (q *Queue) ListActive() ([]types.BroadcastJob, error) {
	var jobs []types.BroadcastJob
	err := q.db.Where("status IN ?", []string{types.JobPending, types.JobProcessing}).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

func (q *Queue) Delete(id uint64) error {
	return q.db.Delete(&types.BroadcastJob{}, id).Error
}
