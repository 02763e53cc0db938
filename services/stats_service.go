package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/models"
)

const orderStatsKey = "order_stats"

// DefaultStatsTTL is how long order statistics are served from cache
const DefaultStatsTTL = 5 * time.Minute

// OrderStats is the dashboard aggregate
type OrderStats struct {
	TotalOrders              int64            `json:"total_orders"`
	PendingOrders            int64            `json:"pending_orders"`
	ApprovedOrders           int64            `json:"approved_orders"`
	RejectedOrders           int64            `json:"rejected_orders"`
	ReadyForProductionOrders int64            `json:"ready_for_production_orders"`
	InProductionOrders       int64            `json:"in_production_orders"`
	InWarehouseOrders        int64            `json:"in_warehouse_orders"`
	OutWarehouseOrders       int64            `json:"out_warehouse_orders"`
	CompletedOrders          int64            `json:"completed_orders"`
	TotalUsers               int64            `json:"total_users"`
	StatusBreakdown          map[string]int64 `json:"status_breakdown"`
	LastUpdated              time.Time        `json:"last_updated"`
}

// StatsService computes and caches order statistics
type StatsService struct {
	db     *gorm.DB
	cache  StatsCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewStatsService(db *gorm.DB, cache StatsCache, ttl time.Duration, logger *zap.Logger) *StatsService {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatsService{db: db, cache: cache, ttl: ttl, logger: logger}
}

// OrderStats returns cached statistics, recomputing them on a miss.
// Cache failures degrade to a direct query.
func (s *StatsService) OrderStats(ctx context.Context) (*OrderStats, error) {
	var cached OrderStats
	hit, err := s.cache.Get(ctx, orderStatsKey, &cached)
	if err != nil {
		s.logger.Warn("stats cache read failed", zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	stats, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, orderStatsKey, stats, s.ttl); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}
	return stats, nil
}

// Invalidate drops the cached statistics
func (s *StatsService) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, orderStatsKey); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

type statusCount struct {
	Status models.OrderStatus
	Count  int64
}

func (s *StatsService) compute(ctx context.Context) (*OrderStats, error) {
	var rows []statusCount
	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders by status: %w", err)
	}

	stats := &OrderStats{
		StatusBreakdown: make(map[string]int64, len(models.AllStatuses)),
		LastUpdated:     time.Now().UTC(),
	}
	for _, status := range models.AllStatuses {
		stats.StatusBreakdown[string(status)] = 0
	}

	for _, row := range rows {
		stats.StatusBreakdown[string(row.Status)] = row.Count
		stats.TotalOrders += row.Count

		switch row.Status {
		case models.StatusPending:
			stats.PendingOrders = row.Count
		case models.StatusApproved:
			stats.ApprovedOrders = row.Count
		case models.StatusRejected:
			stats.RejectedOrders = row.Count
		case models.StatusReadyForProduction:
			stats.ReadyForProductionOrders = row.Count
		case models.StatusInProduction:
			stats.InProductionOrders = row.Count
		case models.StatusInWarehouse:
			stats.InWarehouseOrders = row.Count
		case models.StatusOutWarehouse:
			stats.OutWarehouseOrders = row.Count
		case models.StatusCompleted:
			stats.CompletedOrders = row.Count
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return stats, nil
}
