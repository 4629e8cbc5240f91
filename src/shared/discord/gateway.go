package discord

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Recipient is one guild member as returned by the platform.
type Recipient struct {
	ID       string
	Username string
	Bot      bool
}

// FeedMessage is one message from a monitored channel. Embeds carries
// the description field of each rich embed.
type FeedMessage struct {
	ID       string
	AuthorID string
	Content  string
	Embeds   []string
}

// Gateway abstracts the Discord REST surface the engines need. Every
// call authenticates with the supplied bot token, since broadcast jobs
// carry their own delivery credential.
type Gateway interface {
	ListMembers(token, guildID string) ([]Recipient, error)
	OpenDirectChannel(token, userID string) (string, error)
	SendMessage(token, channelID, content string) error
	RecentMessages(token, channelID string, limit int) ([]FeedMessage, error)
}

// restGateway implements Gateway on discordgo REST calls, keeping one
// session per token.
type restGateway struct {
	mu       sync.Mutex
	sessions map[string]*discordgo.Session
}

func NewGateway() Gateway {
	return &restGateway{sessions: make(map[string]*discordgo.Session)}
}

func (g *restGateway) session(token string) (*discordgo.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.sessions[token]; ok {
		return s, nil
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	g.sessions[token] = s
	return s, nil
}

// ListMembers pages through the guild member list in platform order.
func (g *restGateway) ListMembers(token, guildID string) ([]Recipient, error) {
	s, err := g.session(token)
	if err != nil {
		return nil, err
	}

	var recipients []Recipient
	after := ""
	for {
		members, err := s.GuildMembers(guildID, after, 1000)
		if err != nil {
			return nil, fmt.Errorf("fetch members: %w", err)
		}
		if len(members) == 0 {
			break
		}
		for _, m := range members {
			if m.User == nil {
				continue
			}
			recipients = append(recipients, Recipient{
				ID:       m.User.ID,
				Username: m.User.Username,
				Bot:      m.User.Bot,
			})
			after = m.User.ID
		}
		if len(members) < 1000 {
			break
		}
	}
	return recipients, nil
}

func (g *restGateway) OpenDirectChannel(token, userID string) (string, error) {
	s, err := g.session(token)
	if err != nil {
		return "", err
	}
	ch, err := s.UserChannelCreate(userID)
	if err != nil {
		return "", fmt.Errorf("create dm channel: %w", err)
	}
	return ch.ID, nil
}

func (g *restGateway) SendMessage(token, channelID, content string) error {
	s, err := g.session(token)
	if err != nil {
		return err
	}
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (g *restGateway) RecentMessages(token, channelID string, limit int) ([]FeedMessage, error) {
	s, err := g.session(token)
	if err != nil {
		return nil, err
	}
	msgs, err := s.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	out := make([]FeedMessage, 0, len(msgs))
	for _, m := range msgs {
		fm := FeedMessage{ID: m.ID, Content: m.Content}
		if m.Author != nil {
			fm.AuthorID = m.Author.ID
		}
		for _, e := range m.Embeds {
			fm.Embeds = append(fm.Embeds, e.Description)
		}
		out = append(out, fm)
	}
	return out, nil
}
