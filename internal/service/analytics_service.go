package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
)

// AnalyticsRepository defines the aggregate queries the analyzer runs
// against the trace store.
type AnalyticsRepository interface {
	FailedTraces(ctx context.Context, window time.Duration, limit int) ([]domain.FailedTrace, error)
	ErrorSummary(ctx context.Context, window time.Duration) (*domain.ErrorSummary, error)
	SlowTraces(ctx context.Context, thresholdMs float64, window time.Duration, limit int) ([]domain.SlowTrace, error)
	LatencyPercentiles(ctx context.Context, window time.Duration) (*domain.LatencyStats, error)
	SpanPerformance(ctx context.Context, spanType *domain.SpanType, window time.Duration) ([]domain.SpanPerfRow, error)
	RequestVolume(ctx context.Context, window time.Duration, bucket time.Duration) ([]domain.VolumeBucket, error)
	UserActivity(ctx context.Context, window time.Duration, limit int) ([]domain.UserActivityRow, error)
	RequestCounts(ctx context.Context, window time.Duration) (total uint64, errored uint64, err error)
}

// healthCacheTTL keeps the health summary fresh enough for dashboards
// without hitting ClickHouse on every poll.
const healthCacheTTL = 30 * time.Second

// degradedErrorFraction is the error fraction above which the service
// reports degraded. Exactly 5% still counts as healthy.
const degradedErrorFraction = 0.05

// AnalyticsService answers operational questions about recent traces:
// failures, slowness, latency distribution, volume and overall health.
type AnalyticsService struct {
	repo   AnalyticsRepository
	redis  *redis.Client
	logger *zap.Logger
}

// NewAnalyticsService creates a new analytics service. redisClient may be
// nil; the health summary is then computed on every call.
func NewAnalyticsService(logger *zap.Logger, repo AnalyticsRepository, redisClient *redis.Client) *AnalyticsService {
	return &AnalyticsService{
		logger: logger.Named("analytics"),
		repo:   repo,
		redis:  redisClient,
	}
}

// FailedTraces returns recent traces containing error spans, newest first
func (s *AnalyticsService) FailedTraces(ctx context.Context, hours, limit int) ([]domain.FailedTrace, error) {
	return s.repo.FailedTraces(ctx, windowOf(hours), clampLimit(limit))
}

// ErrorSummary groups recent span errors by operation name
func (s *AnalyticsService) ErrorSummary(ctx context.Context, hours int) (*domain.ErrorSummary, error) {
	summary, err := s.repo.ErrorSummary(ctx, windowOf(hours))
	if err != nil {
		return nil, err
	}
	summary.PeriodHours = normalizeHours(hours)
	return summary, nil
}

// SlowTraces returns traces whose duration met the threshold, slowest first
func (s *AnalyticsService) SlowTraces(ctx context.Context, thresholdMs float64, hours, limit int) ([]domain.SlowTrace, error) {
	if thresholdMs <= 0 {
		thresholdMs = 1000
	}
	return s.repo.SlowTraces(ctx, thresholdMs, windowOf(hours), clampLimit(limit))
}

// LatencyPercentiles returns the trace duration distribution for the window
func (s *AnalyticsService) LatencyPercentiles(ctx context.Context, hours int) (*domain.LatencyStats, error) {
	return s.repo.LatencyPercentiles(ctx, windowOf(hours))
}

// SpanPerformance summarizes span durations per operation, optionally
// restricted to one span type.
func (s *AnalyticsService) SpanPerformance(ctx context.Context, spanType *domain.SpanType, hours int) ([]domain.SpanPerfRow, error) {
	return s.repo.SpanPerformance(ctx, spanType, windowOf(hours))
}

// RequestVolume returns time-bucketed request counts with average duration
func (s *AnalyticsService) RequestVolume(ctx context.Context, hours, bucketMinutes int) ([]domain.VolumeBucket, error) {
	if bucketMinutes <= 0 {
		bucketMinutes = 60
	}
	return s.repo.RequestVolume(ctx, windowOf(hours), time.Duration(bucketMinutes)*time.Minute)
}

// UserActivity returns the most active users in the window
func (s *AnalyticsService) UserActivity(ctx context.Context, hours, limit int) ([]domain.UserActivityRow, error) {
	return s.repo.UserActivity(ctx, windowOf(hours), clampLimit(limit))
}

// HealthSummary returns the at-a-glance health report for the window. The
// result is cached briefly in Redis keyed by window size.
func (s *AnalyticsService) HealthSummary(ctx context.Context, hours int) (*domain.HealthSummary, error) {
	hours = normalizeHours(hours)
	cacheKey := fmt.Sprintf("analytics:health:%d", hours)

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var summary domain.HealthSummary
			if err := json.Unmarshal(cached, &summary); err == nil {
				return &summary, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("health cache read failed", zap.Error(err))
		}
	}

	summary, err := s.computeHealthSummary(ctx, hours)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, healthCacheTTL).Err(); err != nil {
				s.logger.Warn("health cache write failed", zap.Error(err))
			}
		}
	}

	return summary, nil
}

func (s *AnalyticsService) computeHealthSummary(ctx context.Context, hours int) (*domain.HealthSummary, error) {
	window := time.Duration(hours) * time.Hour

	total, errored, err := s.repo.RequestCounts(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	latency, err := s.repo.LatencyPercentiles(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to compute latency: %w", err)
	}

	// Last four 15-minute buckets regardless of the report window.
	recent, err := s.repo.RequestVolume(ctx, time.Hour, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to compute recent volume: %w", err)
	}
	if len(recent) > 4 {
		recent = recent[len(recent)-4:]
	}

	var errorRate float64
	status := domain.HealthStateHealthy
	if total > 0 {
		fraction := float64(errored) / float64(total)
		errorRate = fraction * 100
		if fraction > degradedErrorFraction {
			status = domain.HealthStateDegraded
		}
	}

	return &domain.HealthSummary{
		PeriodHours:   hours,
		TotalRequests: total,
		ErrorCount:    errored,
		ErrorRate:     errorRate,
		LatencyP95Ms:  latency.P95Ms,
		LatencyAvgMs:  latency.AvgMs,
		RecentVolume:  recent,
		Status:        status,
	}, nil
}

func normalizeHours(hours int) int {
	if hours <= 0 {
		return 24
	}
	return hours
}

func windowOf(hours int) time.Duration {
	return time.Duration(normalizeHours(hours)) * time.Hour
}
