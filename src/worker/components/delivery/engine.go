package delivery

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/discord"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/queue"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/types"
)

// Abort threshold: once more than maxEarlyFailures sends have failed
// while fewer than minSentBeforeAbort succeeded, the run is treated as a
// systemic failure (revoked token, platform block) and stops early.
const (
	maxEarlyFailures   = 10
	minSentBeforeAbort = 5
	checkpointEvery    = 10
)

// Engine drives queued broadcasts one at a time. It is the only writer
// to a job after claiming it.
type Engine struct {
	queue   *queue.Queue
	gateway discord.Gateway
	rdb     *redis.Client // optional progress stream
	idle    time.Duration
}

func New(q *queue.Queue, gw discord.Gateway, rdb *redis.Client, idle time.Duration) *Engine {
	if idle <= 0 {
		idle = 5 * time.Second
	}
	return &Engine{queue: q, gateway: gw, rdb: rdb, idle: idle}
}

// Run polls for pending jobs until ctx is cancelled. Cancellation is
// only honored between jobs; a claimed job runs to completion or the
// abort threshold.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("delivery engine started (idle interval %s)", e.idle)

	for {
		select {
		case <-ctx.Done():
			log.Printf("delivery engine stopped")
			return
		default:
		}

		job, err := e.queue.NextPending()
		if err != nil {
			log.Printf("fetch pending job: %v", err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
				log.Printf("delivery engine stopped")
				return
			case <-time.After(e.idle):
			}
			continue
		}

		if err := e.processJob(job); err != nil {
			log.Printf("job %d failed: %v", job.ID, err)
			msg := err.Error()
			if uerr := e.queue.UpdateStatus(job.ID, types.JobFailed, queue.StatusUpdate{
				ErrorMessage: &msg,
			}); uerr != nil {
				log.Printf("job %d: mark failed: %v", job.ID, uerr)
			}
		}
	}
}

func (e *Engine) processJob(job *types.BroadcastJob) error {
	if err := e.queue.UpdateStatus(job.ID, types.JobProcessing, queue.StatusUpdate{}); err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	log.Printf("job %d: broadcasting to guild %s", job.ID, job.GuildID)

	members, err := e.gateway.ListMembers(job.BotToken, job.GuildID)
	if err != nil {
		msg := err.Error()
		if uerr := e.queue.UpdateStatus(job.ID, types.JobFailed, queue.StatusUpdate{
			ErrorMessage: &msg,
		}); uerr != nil {
			log.Printf("job %d: mark failed: %v", job.ID, uerr)
		}
		return nil
	}

	// Bots never receive broadcasts.
	recipients := members[:0]
	for _, m := range members {
		if !m.Bot {
			recipients = append(recipients, m)
		}
	}

	total := len(recipients)
	if err := e.queue.UpdateStatus(job.ID, types.JobProcessing, queue.StatusUpdate{
		TotalMembers: &total,
	}); err != nil {
		return fmt.Errorf("record member count: %w", err)
	}

	sent, failed, processed := 0, 0, 0
	aborted := false

	for _, r := range recipients {
		channelID, err := e.gateway.OpenDirectChannel(job.BotToken, r.ID)
		if err != nil {
			failed++
		} else {
			body := personalize(job.Message, r, job.EnableMentions)
			if err := e.gateway.SendMessage(job.BotToken, channelID, body); err != nil {
				failed++
			} else {
				sent++
			}
		}

		processed++
		progress := int(math.Round(float64(processed) / float64(total) * 100))

		if processed%checkpointEvery == 0 || processed == total {
			if err := e.queue.UpdateStatus(job.ID, types.JobProcessing, queue.StatusUpdate{
				Progress:    &progress,
				SentCount:   &sent,
				FailedCount: &failed,
			}); err != nil {
				return fmt.Errorf("checkpoint: %w", err)
			}
			e.publishProgress(job.ID, progress, sent, failed, total)
		}

		// Anti-abuse pacing between recipients.
		time.Sleep(time.Duration(job.DelaySeconds) * time.Second)

		if failed > maxEarlyFailures && sent < minSentBeforeAbort {
			log.Printf("job %d: aborting after %d failures with %d sent", job.ID, failed, sent)
			aborted = true
			break
		}
	}

	upd := queue.StatusUpdate{SentCount: &sent, FailedCount: &failed}
	if !aborted {
		full := 100
		upd.Progress = &full
	}
	if err := e.queue.UpdateStatus(job.ID, types.JobCompleted, upd); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	log.Printf("job %d: done, sent=%d failed=%d total=%d", job.ID, sent, failed, total)
	return nil
}

// personalize substitutes the template placeholders for one recipient.
// Without the mentions flag the template is delivered verbatim.
func personalize(template string, r discord.Recipient, mentions bool) string {
	if !mentions {
		return template
	}
	out := strings.ReplaceAll(template, "{user}", "<@"+r.ID+">")
	out = strings.ReplaceAll(out, "{username}", r.Username)
	return out
}

func (e *Engine) publishProgress(jobID uint64, progress, sent, failed, total int) {
	if e.rdb == nil {
		return
	}
	err := data.PublishProgress(context.Background(), e.rdb, map[string]interface{}{
		"job_id":   jobID,
		"progress": progress,
		"sent":     sent,
		"failed":   failed,
		"total":    total,
	})
	if err != nil {
		log.Printf("job %d: publish progress: %v", jobID, err)
	}
}
