package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
)

// DashboardCacheTTL bounds how stale the dashboard counters may be
const DashboardCacheTTL = time.Minute

// DashboardService computes the home dashboard and its daily snapshots
type DashboardService struct {
	dashboard ports.DashboardRepository
	cache     ports.Cache
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(repos Repositories, infra Infrastructure) *DashboardService {
	return &DashboardService{dashboard: repos.Dashboard, cache: infra.Cache}
}

// Dashboard returns the counters of the caller's organization
func (s *DashboardService) Dashboard(ctx context.Context, identity auth.Identity) (*models.DashboardStats, error) {
	orgID := identity.OrganizationID()
	key := "dashboard:" + orgID
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var stats models.DashboardStats
			if json.Unmarshal([]byte(raw), &stats) == nil {
				return &stats, nil
			}
		case !errors.Is(err, ports.ErrCacheMiss):
			log.Printf("⚠️ Dashboard cache read failed: %v", err)
		}
	}

	stats, err := s.collect(ctx, orgID, nowFunc())
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), DashboardCacheTTL); err != nil {
				log.Printf("⚠️ Dashboard cache write failed: %v", err)
			}
		}
	}
	return stats, nil
}

// SnapshotDailyMetrics persists today's counters for every organization
func (s *DashboardService) SnapshotDailyMetrics(ctx context.Context) (int, error) {
	orgIDs, err := s.dashboard.ListOrganizationIDs(ctx)
	if err != nil {
		return 0, err
	}
	now := nowFunc()
	saved := 0
	for _, orgID := range orgIDs {
		stats, err := s.collect(ctx, orgID, now)
		if err != nil {
			log.Printf("⚠️ Failed to collect metrics of %s: %v", orgID, err)
			continue
		}
		metrics := &models.DailyMetrics{
			OrganizationID: orgID,
			Date:           now.Format("2006-01-02"),
			Stats:          *stats,
			CreatedAt:      now,
		}
		if err := s.dashboard.SaveDailyMetrics(ctx, metrics); err != nil {
			return saved, err
		}
		saved++
	}
	log.Printf("📊 Daily metrics saved for %d organization(s)", saved)
	return saved, nil
}

func (s *DashboardService) collect(ctx context.Context, orgID string, now time.Time) (*models.DashboardStats, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	stats, err := s.dashboard.CollectStats(ctx, orgID, monthStart)
	if err != nil {
		return nil, err
	}
	if stats.LeadsByStage == nil {
		stats.LeadsByStage = map[string]int{}
	}
	if stats.ChurnRisk == nil {
		stats.ChurnRisk = map[string]int{}
	}
	stats.ConversionRate = round2(stats.ConversionRate)
	return stats, nil
}
