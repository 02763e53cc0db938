// Package workflow is the order lifecycle state machine.
//
// Every status change goes through Apply, which looks the action up in a
// single transition table and checks, in order: the actor guard, the
// current status, and the action's input. A failed check leaves the order
// untouched. Persisting the result is the caller's job; Transition.Columns
// lists exactly the columns Apply may have changed.
package workflow

import (
	"strings"
	"time"

	"github.com/yp-firedoor/firedoor-oa/authz"
	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/models"
)

// Action is a status-changing operation on an order.
type Action string

const (
	Approve               Action = "approve"
	Reject                Action = "reject"
	Resubmit              Action = "resubmit"
	UploadProductionSheet Action = "upload_production_sheet"
	StartProduction       Action = "start_production"
	Inbound               Action = "inbound"
	Outbound              Action = "outbound"
	Complete              Action = "complete"
)

// Transition is one row of the table.
type Transition struct {
	Action     Action
	From       models.OrderStatus
	To         models.OrderStatus
	Permission authz.Action
	// FileSlot is the attachment the action writes, if any.
	FileSlot models.FileSlot
	// FileRequired means the action fails without an attachment.
	FileRequired bool
	OwnerOnly    bool
	Columns      []string
}

var reviewColumns = []string{"status", "reviewed_by_id", "review_date", "review_notes", "updated_at"}

var transitions = map[Action]Transition{
	Approve: {
		Action: Approve, From: models.StatusPending, To: models.StatusApproved,
		Permission: authz.OrderReview,
		Columns:    reviewColumns,
	},
	Reject: {
		Action: Reject, From: models.StatusPending, To: models.StatusRejected,
		Permission: authz.OrderReview,
		Columns:    reviewColumns,
	},
	Resubmit: {
		Action: Resubmit, From: models.StatusRejected, To: models.StatusPending,
		Permission: authz.OrderResubmit,
		FileSlot:   models.SlotOrderFile,
		OwnerOnly:  true,
		Columns: []string{
			"status", "reviewed_by_id", "review_date", "review_notes",
			"order_file", "project_name", "ordered_by", "updated_at",
		},
	},
	UploadProductionSheet: {
		Action: UploadProductionSheet, From: models.StatusApproved, To: models.StatusReadyForProduction,
		Permission:   authz.OrderUploadProductionSheet,
		FileSlot:     models.SlotProductionSheet,
		FileRequired: true,
		Columns: []string{
			"status", "production_started_by_id", "production_started_at",
			"production_sheet", "production_notes", "updated_at",
		},
	},
	StartProduction: {
		Action: StartProduction, From: models.StatusReadyForProduction, To: models.StatusInProduction,
		Permission: authz.OrderStartProduction,
		Columns:    []string{"status", "inbound_by_id", "inbound_at", "updated_at"},
	},
	Inbound: {
		Action: Inbound, From: models.StatusInProduction, To: models.StatusInWarehouse,
		Permission: authz.OrderInbound,
		Columns:    []string{"status", "inbound_by_id", "inbound_at", "updated_at"},
	},
	Outbound: {
		Action: Outbound, From: models.StatusInWarehouse, To: models.StatusOutWarehouse,
		Permission:   authz.OrderOutbound,
		FileSlot:     models.SlotOutboundFile,
		FileRequired: true,
		Columns: []string{
			"status", "outbound_by_id", "outbound_at", "outbound_file", "outbound_notes", "updated_at",
		},
	},
	Complete: {
		Action: Complete, From: models.StatusOutWarehouse, To: models.StatusCompleted,
		Permission: authz.OrderComplete,
		Columns:    []string{"status", "updated_at"},
	},
}

// Lookup returns the transition for action.
func Lookup(action Action) (Transition, bool) {
	t, ok := transitions[action]
	return t, ok
}

// Transitions returns a copy of the table.
func Transitions() map[Action]Transition {
	out := make(map[Action]Transition, len(transitions))
	for k, v := range transitions {
		out[k] = v
	}
	return out
}

// Actor is the user performing an action.
type Actor struct {
	ID   uint
	Role models.Role
}

// Input carries the optional data an action may need.
type Input struct {
	ReviewNotes     string
	ProductionNotes string
	OutboundNotes   string
	// FileKey is the storage key of the attachment written by the action.
	FileKey string
	// ProjectName and OrderedBy replace the current values on resubmit when set.
	ProjectName *string
	OrderedBy   *string
}

// Check runs the actor guard and the status precondition without touching the order.
func Check(order *models.Order, action Action, actor Actor) (Transition, error) {
	t, ok := transitions[action]
	if !ok {
		return Transition{}, errs.BadRequest("UNKNOWN_ACTION", "unknown order action: "+string(action))
	}
	if t.OwnerOnly && !order.IsOwnedBy(actor.ID) {
		return t, errs.NotOwner()
	}
	if order.Status != t.From {
		return t, errs.InvalidState(string(order.Status), string(t.From))
	}
	return t, nil
}

// Validate checks the action's input.
func Validate(t Transition, in Input) error {
	fields := map[string]string{}

	if t.Action == Reject && strings.TrimSpace(in.ReviewNotes) == "" {
		fields["review_notes"] = "review_notes is required when rejecting an order"
	}
	if t.FileRequired && in.FileKey == "" {
		fields[string(t.FileSlot)] = string(t.FileSlot) + " is required"
	}
	if in.ProjectName != nil && strings.TrimSpace(*in.ProjectName) == "" {
		fields["project_name"] = "project_name cannot be blank"
	}
	if in.OrderedBy != nil && strings.TrimSpace(*in.OrderedBy) == "" {
		fields["ordered_by"] = "ordered_by cannot be blank"
	}

	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		for field, msg := range fields {
			return errs.Validation(field, msg)
		}
	}
	return errs.ValidationFields(fields)
}

// Apply validates action against order and, on success, mutates it in place.
func Apply(order *models.Order, action Action, actor Actor, in Input, now time.Time) (Transition, error) {
	t, err := Check(order, action, actor)
	if err != nil {
		return t, err
	}
	if err := Validate(t, in); err != nil {
		return t, err
	}

	actorID := actor.ID
	switch action {
	case Approve:
		order.ReviewedByID = &actorID
		order.ReviewDate = &now
		order.ReviewNotes = strings.TrimSpace(in.ReviewNotes)
	case Reject:
		order.ReviewedByID = &actorID
		order.ReviewDate = &now
		order.ReviewNotes = strings.TrimSpace(in.ReviewNotes)
	case Resubmit:
		order.ReviewedByID = nil
		order.ReviewedBy = nil
		order.ReviewDate = nil
		order.ReviewNotes = ""
		if in.ProjectName != nil {
			order.ProjectName = strings.TrimSpace(*in.ProjectName)
		}
		if in.OrderedBy != nil {
			order.OrderedBy = strings.TrimSpace(*in.OrderedBy)
		}
	case UploadProductionSheet:
		order.ProductionStartedByID = &actorID
		order.ProductionStartedAt = &now
		order.ProductionNotes = strings.TrimSpace(in.ProductionNotes)
	case StartProduction, Inbound:
		order.InboundByID = &actorID
		order.InboundAt = &now
	case Outbound:
		order.OutboundByID = &actorID
		order.OutboundAt = &now
		order.OutboundNotes = strings.TrimSpace(in.OutboundNotes)
	}

	// An optional attachment left empty keeps the slot's current file.
	if t.FileSlot != "" && in.FileKey != "" {
		order.SetFileKey(t.FileSlot, in.FileKey)
	}

	order.Status = t.To
	order.UpdatedAt = now
	order.Decorate()
	return t, nil
}
