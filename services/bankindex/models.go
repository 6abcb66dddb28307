package bankindex

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed ledger event.
type EventRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence    uint64    `gorm:"uniqueIndex;not null"`
	Type        string    `gorm:"index;not null"`
	PositionID  uint64    `gorm:"index"`
	Bank        string    `gorm:"index"`
	ExecutionID string    `gorm:"index"`
	Attributes  string    `gorm:"type:text;not null"`
	CreatedAt   time.Time
}

func (EventRecord) TableName() string { return "bank_events" }

// AutoMigrate performs all schema migrations for the index.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
