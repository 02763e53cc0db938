package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileSlot names one of the three attachment fields of an order.
type FileSlot string

const (
	SlotOrderFile       FileSlot = "order_file"
	SlotProductionSheet FileSlot = "production_sheet"
	SlotOutboundFile    FileSlot = "outbound_file"
)

// FileSlots lists the attachment slots in lifecycle order.
var FileSlots = []FileSlot{SlotOrderFile, SlotProductionSheet, SlotOutboundFile}

func (s FileSlot) Valid() bool {
	switch s {
	case SlotOrderFile, SlotProductionSheet, SlotOutboundFile:
		return true
	}
	return false
}

// Order is one fire-door fabrication job.
type Order struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber string      `gorm:"uniqueIndex;size:20;not null" json:"order_number"`
	UserID      uint        `gorm:"not null;index" json:"user_id"`
	User        *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ProjectName string      `gorm:"size:200;not null" json:"project_name"`
	OrderedBy   string      `gorm:"size:100;not null" json:"ordered_by"`
	Status      OrderStatus `gorm:"size:32;not null;index" json:"status"`

	// Attachment storage keys. Empty means the slot was never filled.
	OrderFile       string `gorm:"size:500" json:"order_file"`
	ProductionSheet string `gorm:"size:500" json:"production_sheet"`
	OutboundFile    string `gorm:"size:500" json:"outbound_file"`

	ReviewedByID *uint      `gorm:"index" json:"reviewed_by_id"`
	ReviewedBy   *User      `gorm:"foreignKey:ReviewedByID" json:"reviewed_by,omitempty"`
	ReviewDate   *time.Time `json:"review_date"`
	ReviewNotes  string     `gorm:"type:text" json:"review_notes"`

	ProductionStartedByID *uint      `gorm:"index" json:"production_started_by_id"`
	ProductionStartedBy   *User      `gorm:"foreignKey:ProductionStartedByID" json:"production_started_by,omitempty"`
	ProductionStartedAt   *time.Time `json:"production_started_at"`
	ProductionNotes       string     `gorm:"type:text" json:"production_notes"`

	InboundByID *uint      `gorm:"index" json:"inbound_by_id"`
	InboundBy   *User      `gorm:"foreignKey:InboundByID" json:"inbound_by,omitempty"`
	InboundAt   *time.Time `json:"inbound_at"`

	OutboundByID  *uint      `gorm:"index" json:"outbound_by_id"`
	OutboundBy    *User      `gorm:"foreignKey:OutboundByID" json:"outbound_by,omitempty"`
	OutboundAt    *time.Time `json:"outbound_at"`
	OutboundNotes string     `gorm:"type:text" json:"outbound_notes"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Computed fields, filled after load.
	StatusDisplay string            `gorm:"-" json:"status_display"`
	DownloadURLs  map[string]string `gorm:"-" json:"download_urls,omitempty"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns a UUID when none was set.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// AfterFind fills the computed fields.
func (o *Order) AfterFind(tx *gorm.DB) error {
	o.Decorate()
	return nil
}

// Decorate recomputes the display-only fields from persisted state.
func (o *Order) Decorate() {
	o.StatusDisplay = o.Status.Label()
	o.DownloadURLs = nil
	for _, slot := range FileSlots {
		if o.FileKey(slot) == "" {
			continue
		}
		if o.DownloadURLs == nil {
			o.DownloadURLs = make(map[string]string, len(FileSlots))
		}
		o.DownloadURLs[string(slot)] = fmt.Sprintf("/api/v1/orders/%s/download/%s", o.ID, slot)
	}
}

// FileKey returns the storage key held in slot.
func (o *Order) FileKey(slot FileSlot) string {
	switch slot {
	case SlotOrderFile:
		return o.OrderFile
	case SlotProductionSheet:
		return o.ProductionSheet
	case SlotOutboundFile:
		return o.OutboundFile
	}
	return ""
}

// SetFileKey stores key in slot.
func (o *Order) SetFileKey(slot FileSlot, key string) {
	switch slot {
	case SlotOrderFile:
		o.OrderFile = key
	case SlotProductionSheet:
		o.ProductionSheet = key
	case SlotOutboundFile:
		o.OutboundFile = key
	}
}

// IsOwnedBy reports whether userID created the order.
func (o *Order) IsOwnedBy(userID uint) bool {
	return o.UserID == userID
}
