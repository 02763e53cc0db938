package models

import "time"

// OrderSequence holds the last issued order-number suffix for one month prefix.
type OrderSequence struct {
	Prefix    string    `gorm:"primaryKey;size:16"`
	LastValue int       `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName specifies the table name for the OrderSequence model
func (OrderSequence) TableName() string {
	return "order_sequences"
}
