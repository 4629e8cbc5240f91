package reconcile

import (
	"fmt"
	"log"
)

func (e *Engine) notifyConfirmation(userID string, rawAmount, credits int64) {
	msg := fmt.Sprintf("✅ **Payment Successful!**\n\n"+
		"💰 **Received:** %d ProBot Credits\n"+
		"📨 **Added:** %d Broadcast Messages\n\n"+
		"🎉 Your credits have been added to your wallet!\n"+
		"🌐 Visit: %s", rawAmount, credits, e.cfg.WalletURL)
	e.sendDirect(userID, msg)
}

func (e *Engine) notifyRegistration(userID string) {
	msg := fmt.Sprintf("⚠️ **Registration Required**\n\n"+
		"To receive credits, please register first:\n"+
		"🌐 %s\n\n"+
		"After registration, your payment will be processed automatically!", e.cfg.LoginURL)
	e.sendDirect(userID, msg)
}

func (e *Engine) notifyError(userID string, cause error) {
	msg := fmt.Sprintf("❌ **Payment Processing Error**\n\n"+
		"There was an issue processing your payment:\n"+
		"`%v`\n\n"+
		"Please contact support or try again.", cause)
	e.sendDirect(userID, msg)
}

func (e *Engine) sendDirect(userID, content string) {
	channelID, err := e.gateway.OpenDirectChannel(e.cfg.BotToken, userID)
	if err != nil {
		log.Printf("notify %s: open dm: %v", userID, err)
		return
	}
	if err := e.gateway.SendMessage(e.cfg.BotToken, channelID, content); err != nil {
		log.Printf("notify %s: send: %v", userID, err)
	}
}
