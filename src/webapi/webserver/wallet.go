package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/shared/ledger"
)

type Wallet struct {
	ledger *ledger.Ledger
}

func NewWallet(db *gorm.DB) Wallet {
	return Wallet{ledger: ledger.New(db)}
}

func (w Wallet) Show(c *gin.Context) {
	discordID := c.GetString("discordID")

	balance, err := w.ledger.Balance(discordID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	txns, err := w.ledger.History(discordID, 25)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	type txnView struct {
		Amount    int64  `json:"amount"`
		Reason    string `json:"reason"`
		CreatedAt string `json:"createdAt"`
	}
	views := make([]txnView, 0, len(txns))
	for _, t := range txns {
		views = append(views, txnView{
			Amount:    t.Amount,
			Reason:    t.Reason,
			CreatedAt: t.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance, "transactions": views})
}
