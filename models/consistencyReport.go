package models

import "time"

// ConsistencyReport is a persisted audit finding. The auditor only writes
// these when asked to persist; it never mutates titles or evidence.
type ConsistencyReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"size:64;index;not null" json:"business_id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`
	Severity      string    `gorm:"size:20;not null" json:"severity"`
	EntityType    string    `gorm:"size:50;not null" json:"entity_type"`
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}
