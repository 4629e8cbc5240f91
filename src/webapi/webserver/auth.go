package webserver

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/data"
	"github.com/broadcaster-pro/discord-broadcaster/src/shared/types"
	"github.com/broadcaster-pro/discord-broadcaster/src/webapi/config"
)

type Auth struct {
	db        *gorm.DB
	rdb       *redis.Client
	oauth     *oauthClient
	jwtSecret []byte
}

func NewAuth(cfg config.Config, db *gorm.DB, rdb *redis.Client) Auth {
	return Auth{
		db:        db,
		rdb:       rdb,
		oauth:     newOAuthClient(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI),
		jwtSecret: []byte(cfg.JWTSecret),
	}
}

// Login hands the client a Discord consent URL with a one-time state.
func (a Auth) Login(c *gin.Context) {
	state := uuid.NewString()
	if err := data.SetOAuthState(c, a.rdb, state); err != nil {
		log.Printf("Failed to store oauth state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to start login"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": a.oauth.AuthorizeURL(state)})
}

// Callback completes the OAuth flow: state check, code exchange,
// identity fetch, user upsert, JWT issue.
func (a Auth) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "missing code or state"})
		return
	}

	ok, err := data.ConsumeOAuthState(c, a.rdb, state)
	if err != nil {
		log.Printf("Failed to check oauth state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "login failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "state expired or unknown"})
		return
	}

	accessToken, err := a.oauth.Exchange(code)
	if err != nil {
		log.Printf("OAuth exchange failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"err": "code exchange failed"})
		return
	}

	du, err := a.oauth.FetchUser(accessToken)
	if err != nil {
		log.Printf("OAuth user fetch failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"err": "identity fetch failed"})
		return
	}

	user := types.User{
		DiscordID:     du.ID,
		Username:      du.Username,
		Discriminator: du.Discriminator,
		AvatarURL:     du.AvatarURL(),
	}
	err = a.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "discriminator", "avatar_url"}),
	}).Create(&user).Error
	if err != nil {
		log.Printf("Failed to upsert user %s: %v", du.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to store user"})
		return
	}

	token, err := issueJWT(du.ID, a.jwtSecret)
	if err != nil {
		log.Printf("Failed to issue JWT for %s: %v", du.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	log.Printf("Successfully authenticated %s (%s)", du.Username, du.ID)
	c.JSON(http.StatusOK, gin.H{"token": token})
}
