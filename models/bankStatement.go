package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankStatementLine is one imported account-movement entry. TitleId is the
// legacy single-title link kept for historical data; new reconciliation goes
// through ReconciliationLink, which supports split settlement.
type BankStatementLine struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"size:64;index;not null" json:"business_id" binding:"required"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     string          `gorm:"type:text" json:"description"`
	MatchStatus     MatchStatus     `gorm:"size:20;index;default:'pending'" json:"match_status"`
	MatchScore      decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"match_score"`
	// MatchCriteria names the resolver strategy that produced the match
	// ("fk", "doc+installment", "amount+date").
	MatchCriteria string    `gorm:"size:50;default:''" json:"match_criteria"`
	TitleId       *int      `gorm:"index;default:null" json:"title_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (l BankStatementLine) GetId() int {
	return l.ID
}
