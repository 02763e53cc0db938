package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/models"
)

const (
	orderNumberPrefix = "YP"
	maxOrderSequence  = 9999
)

// OrderNumberPrefix returns YP + YYYYMM for t's calendar month
func OrderNumberPrefix(t time.Time) string {
	return orderNumberPrefix + t.Format("200601")
}

// FormatOrderNumber joins a month prefix and a sequence value
func FormatOrderNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// ParseOrderSequence extracts the 4-digit suffix of number if it carries prefix
func ParseOrderSequence(number, prefix string) (int, bool) {
	suffix, ok := strings.CutPrefix(number, prefix)
	if !ok || len(suffix) != 4 {
		return 0, false
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// NextOrderNumber reserves the next order number for now's month.
// It must run inside the transaction that inserts the order: the sequence
// row stays locked until that transaction ends. A first-of-month race on
// the sequence row surfaces as gorm.ErrDuplicatedKey for the caller to retry.
func NextOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	prefix := OrderNumberPrefix(now)

	var seq models.OrderSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ?", prefix).
		Take(&seq).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		start, err := maxExistingSequence(tx, prefix)
		if err != nil {
			return "", err
		}
		seq = models.OrderSequence{Prefix: prefix, LastValue: start}
		if err := tx.Create(&seq).Error; err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("failed to lock order sequence: %w", err)
	}

	next := seq.LastValue + 1
	if next > maxOrderSequence {
		return "", errs.Conflict("ORDER_NUMBER_EXHAUSTED",
			fmt.Sprintf("order numbers for %s are exhausted", prefix))
	}

	if err := tx.Model(&models.OrderSequence{}).
		Where("prefix = ?", prefix).
		Updates(map[string]any{"last_value": next, "updated_at": now}).Error; err != nil {
		return "", fmt.Errorf("failed to advance order sequence: %w", err)
	}

	return FormatOrderNumber(prefix, next), nil
}

// maxExistingSequence scans orders already numbered under prefix.
// It seeds a month's sequence row so numbers issued before the row existed are never reused.
func maxExistingSequence(tx *gorm.DB, prefix string) (int, error) {
	var numbers []string
	if err := tx.Model(&models.Order{}).
		Where("order_number LIKE ?", prefix+"%").
		Pluck("order_number", &numbers).Error; err != nil {
		return 0, fmt.Errorf("failed to scan order numbers: %w", err)
	}

	highest := 0
	for _, n := range numbers {
		if seq, ok := ParseOrderSequence(n, prefix); ok && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}
