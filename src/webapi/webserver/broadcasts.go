package webserver

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/ledger"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/queue"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/types"
)

type Broadcasts struct {
	queue     *queue.Queue
	ledger    *ledger.Ledger
	db        *gorm.DB
	sanitizer *bluemonday.Policy
	cost      int64
}

func NewBroadcasts(db *gorm.DB, cost int64) Broadcasts {
	if cost <= 0 {
		cost = 1
	}
	// Templates are delivered as plain Discord messages; strip all markup.
	return Broadcasts{
		queue:     queue.New(db),
		ledger:    ledger.New(db),
		db:        db,
		sanitizer: bluemonday.StrictPolicy(),
		cost:      cost,
	}
}

func (b Broadcasts) Create(c *gin.Context) {
	var req struct {
		GuildID        string `json:"guildId" binding:"required,numeric"`
		Message        string `json:"message" binding:"required,min=1,max=2000"`
		DelaySeconds   int    `json:"delaySeconds" binding:"min=0,max=60"`
		EnableMentions bool   `json:"enableMentions"`
		BotToken       string `json:"botToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	req.Message = b.sanitizer.Sanitize(req.Message)
	if !utf8.ValidString(req.Message) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid characters in message"})
		return
	}
	if len(req.Message) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "message is empty after sanitization"})
		return
	}
	if req.DelaySeconds == 0 {
		req.DelaySeconds = 2
	}

	discordID := c.GetString("discordID")

	var user types.User
	if err := b.db.Where("discord_id = ?", discordID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "unknown user"})
		return
	}

	balance, err := b.ledger.Balance(discordID)
	if err != nil {
		log.Printf("Balance check for %s: %v", discordID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "wallet unavailable"})
		return
	}
	if balance < b.cost {
		c.JSON(http.StatusPaymentRequired, gin.H{"err": "insufficient credits"})
		return
	}

	job := types.BroadcastJob{
		UserID:         user.ID,
		DiscordUserID:  discordID,
		GuildID:        req.GuildID,
		Message:        req.Message,
		TargetType:     "all",
		DelaySeconds:   req.DelaySeconds,
		EnableMentions: req.EnableMentions,
		BotToken:       req.BotToken,
	}
	if err := b.queue.Add(&job); err != nil {
		log.Printf("Enqueue broadcast for %s: %v", discordID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to enqueue"})
		return
	}

	if err := b.ledger.Debit(discordID, b.cost, fmt.Sprintf("Broadcast job #%d", job.ID)); err != nil {
		log.Printf("Debit for job %d: %v", job.ID, err)
	}

	c.JSON(http.StatusCreated, gin.H{"id": job.ID, "status": job.Status})
}

func (b Broadcasts) List(c *gin.Context) {
	discordID := c.GetString("discordID")
	jobs, err := b.queue.ListForUser(discordID, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"broadcasts": toViews(jobs)})
}

func (b Broadcasts) Get(c *gin.Context) {
	job, ok := b.ownedJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toView(*job))
}

// Delete removes a job that has not been claimed yet. Processing and
// finished jobs are history and stay put.
func (b Broadcasts) Delete(c *gin.Context) {
	job, ok := b.ownedJob(c)
	if !ok {
		return
	}
	if job.Status != types.JobPending {
		c.JSON(http.StatusConflict, gin.H{"err": "only pending broadcasts can be deleted"})
		return
	}
	if err := b.queue.Delete(job.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (b Broadcasts) ownedJob(c *gin.Context) (*types.BroadcastJob, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad id"})
		return nil, false
	}
	job, err := b.queue.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "not found"})
		return nil, false
	}
	if job.DiscordUserID != c.GetString("discordID") {
		c.JSON(http.StatusNotFound, gin.H{"err": "not found"})
		return nil, false
	}
	return job, true
}

type jobView struct {
	ID           uint64 `json:"id"`
	GuildID      string `json:"guildId"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	TotalMembers int    `json:"totalMembers"`
	SentCount    int    `json:"sentCount"`
	FailedCount  int    `json:"failedCount"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

func toView(j types.BroadcastJob) jobView {
	return jobView{
		ID:           j.ID,
		GuildID:      j.GuildID,
		Status:       j.Status,
		Progress:     j.Progress,
		TotalMembers: j.TotalMembers,
		SentCount:    j.SentCount,
		FailedCount:  j.FailedCount,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toViews(jobs []types.BroadcastJob) []jobView {
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toView(j))
	}
	return out
}
