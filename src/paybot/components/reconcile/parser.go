package reconcile

import (
	"regexp"
	"strconv"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/discord"
)

// ProBot announces transfers in several phrasings and locales. The
// patterns are ordered; the first match wins. Group 1 is the raw amount,
// group 2 the recipient mention.
var transferPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)✅.*transferred\s+(\d+)\s+credits?\s+to\s+<@(\d+)>`),
	regexp.MustCompile(`(?i)successfully\s+transferred\s+(\d+)\s+credits?\s+to\s+<@(\d+)>`),
	regexp.MustCompile(`(?i)تم\s+تحويل\s+(\d+)\s+.*إلى\s+<@(\d+)>`),
}

// The sender is mentioned either before "transferred" or after the
// Arabic "من".
var senderPattern = regexp.MustCompile(`<@(\d+)>.*transferred|من\s+<@(\d+)>`)

// Transfer is one parsed ProBot credit transfer notification.
type Transfer struct {
	Amount      int64  // raw ProBot credits
	RecipientID string // discord id the credits went to
	SenderID    string // discord id of the payer; empty if unattributable
}

// parseTransfer matches the message content and then each embed
// description against the transfer grammar.
func parseTransfer(msg discord.FeedMessage) (Transfer, bool) {
	if t, ok := matchTransfer(msg.Content); ok {
		return t, true
	}
	for _, desc := range msg.Embeds {
		if t, ok := matchTransfer(desc); ok {
			return t, true
		}
	}
	return Transfer{}, false
}

func matchTransfer(text string) (Transfer, bool) {
	for _, re := range transferPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		return Transfer{
			Amount:      amount,
			RecipientID: m[2],
			SenderID:    extractSender(text),
		}, true
	}
	return Transfer{}, false
}

func extractSender(text string) string {
	m := senderPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}
