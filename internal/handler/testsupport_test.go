package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/middleware"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/pkg/pagination"
	"github.com/agentgauge/agentgauge/internal/service"
)

// fakeKeyStore keeps created keys in memory, indexed by digest. Handler
// tests authenticate through a real AuthMiddleware backed by this store.
type fakeKeyStore struct {
	byDigest map[string]*domain.APIKey
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{byDigest: map[string]*domain.APIKey{}}
}

func (f *fakeKeyStore) Create(ctx context.Context, key *domain.APIKey) error {
	f.byDigest[key.KeyDigest] = key
	return nil
}

func (f *fakeKeyStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	for _, k := range f.byDigest {
		if k.ID == id {
			return k, nil
		}
	}
	return nil, apperrors.NotFound("API key")
}

func (f *fakeKeyStore) GetByDigest(ctx context.Context, digest string) (*domain.APIKey, error) {
	if k, ok := f.byDigest[digest]; ok {
		return k, nil
	}
	return nil, apperrors.NotFound("API key")
}

func (f *fakeKeyStore) Update(ctx context.Context, key *domain.APIKey) error { return nil }

func (f *fakeKeyStore) Delete(ctx context.Context, id uuid.UUID) error {
	for digest, k := range f.byDigest {
		if k.ID == id {
			delete(f.byDigest, digest)
			return nil
		}
	}
	return apperrors.NotFound("API key")
}

func (f *fakeKeyStore) List(ctx context.Context) ([]domain.APIKey, error) {
	keys := make([]domain.APIKey, 0, len(f.byDigest))
	for _, k := range f.byDigest {
		keys = append(keys, *k)
	}
	return keys, nil
}

func (f *fakeKeyStore) UpdateLastUsed(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeKeyStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.byDigest)), nil
}

const testAdminToken = "admin-bootstrap-token"

// newTestAuth builds an auth middleware with one key carrying the given
// scopes. Returns the middleware, the auth service behind it, and the raw
// secret key for request headers.
func newTestAuth(t *testing.T, scopes []string) (*middleware.AuthMiddleware, *service.AuthService, string) {
	t.Helper()

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret: "handler-test-secret-32-bytes!!!!",
			Expiry: time.Hour,
			Issuer: "agentgauge",
		},
	}
	authService := service.NewAuthService(zap.NewNop(), cfg, newFakeKeyStore())

	result, err := authService.CreateAPIKey(context.Background(), &domain.APIKeyInput{
		Name:   "handler test key",
		Scopes: scopes,
	})
	require.NoError(t, err)

	return middleware.NewAuthMiddleware(authService, testAdminToken), authService, result.SecretKey
}

// jsonBody marshals v into a request body reader
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// MockTraceRepository is a mock implementation of service.TraceRepository
type MockTraceRepository struct {
	mock.Mock
}

func (m *MockTraceRepository) Insert(ctx context.Context, trace *domain.Trace) error {
	args := m.Called(ctx, trace)
	return args.Error(0)
}

func (m *MockTraceRepository) InsertBatch(ctx context.Context, traces []*domain.Trace) error {
	args := m.Called(ctx, traces)
	return args.Error(0)
}

func (m *MockTraceRepository) GetByID(ctx context.Context, traceID string) (*domain.Trace, error) {
	args := m.Called(ctx, traceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trace), args.Error(1)
}

func (m *MockTraceRepository) List(ctx context.Context, filter *domain.TraceFilter, limit, offset int, cursor *pagination.Cursor) (*domain.TraceList, error) {
	args := m.Called(ctx, filter, limit, offset, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TraceList), args.Error(1)
}

func (m *MockTraceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	args := m.Called(ctx, cutoff)
	return args.Error(0)
}

// MockSpanRepository is a mock implementation of service.SpanRepository
type MockSpanRepository struct {
	mock.Mock
}

func (m *MockSpanRepository) InsertBatch(ctx context.Context, traceID string, spans []domain.Span) error {
	args := m.Called(ctx, traceID, spans)
	return args.Error(0)
}

func (m *MockSpanRepository) GetByTraceID(ctx context.Context, traceID string) ([]domain.Span, error) {
	args := m.Called(ctx, traceID)
	return args.Get(0).([]domain.Span), args.Error(1)
}

func (m *MockSpanRepository) List(ctx context.Context, filter *domain.SpanFilter, limit int) ([]domain.Span, error) {
	args := m.Called(ctx, filter, limit)
	return args.Get(0).([]domain.Span), args.Error(1)
}

func (m *MockSpanRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	args := m.Called(ctx, cutoff)
	return args.Error(0)
}

// MockLogRepository is a mock implementation of service.LogRepository
type MockLogRepository struct {
	mock.Mock
}

func (m *MockLogRepository) Insert(ctx context.Context, entry *domain.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLogRepository) InsertBatch(ctx context.Context, entries []*domain.LogEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockLogRepository) GetByTraceID(ctx context.Context, traceID string, filter *domain.LogFilter, limit int) ([]domain.LogEntry, error) {
	args := m.Called(ctx, traceID, filter, limit)
	return args.Get(0).([]domain.LogEntry), args.Error(1)
}

func (m *MockLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	args := m.Called(ctx, cutoff)
	return args.Error(0)
}

// MockTestCaseRepository is a mock implementation of service.TestCaseRepository
type MockTestCaseRepository struct {
	mock.Mock
}

func (m *MockTestCaseRepository) Upsert(ctx context.Context, tc *domain.EvalTestCase) error {
	args := m.Called(ctx, tc)
	return args.Error(0)
}

func (m *MockTestCaseRepository) GetByID(ctx context.Context, testID string) (*domain.EvalTestCase, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EvalTestCase), args.Error(1)
}

func (m *MockTestCaseRepository) LoadApproved(ctx context.Context, testIDs []string) ([]domain.EvalTestCase, error) {
	args := m.Called(ctx, testIDs)
	return args.Get(0).([]domain.EvalTestCase), args.Error(1)
}

func (m *MockTestCaseRepository) List(ctx context.Context, filter *domain.TestCaseFilter, limit, offset int) ([]domain.EvalTestCase, error) {
	args := m.Called(ctx, filter, limit, offset)
	return args.Get(0).([]domain.EvalTestCase), args.Error(1)
}

func (m *MockTestCaseRepository) UpdateStatus(ctx context.Context, testID string, status domain.TestCaseStatus) error {
	args := m.Called(ctx, testID, status)
	return args.Error(0)
}

func (m *MockTestCaseRepository) UpdateExpectedOutput(ctx context.Context, testID, expected string) error {
	args := m.Called(ctx, testID, expected)
	return args.Error(0)
}

func (m *MockTestCaseRepository) Delete(ctx context.Context, testID string) error {
	args := m.Called(ctx, testID)
	return args.Error(0)
}

func (m *MockTestCaseRepository) Count(ctx context.Context, status *domain.TestCaseStatus) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

// MockReportRepository is a mock implementation of service.ReportRepository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, report *domain.EvalReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) GetByID(ctx context.Context, id string) (*domain.EvalReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EvalReport), args.Error(1)
}

func (m *MockReportRepository) Complete(ctx context.Context, report *domain.EvalReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) SetObjectKey(ctx context.Context, id, objectKey string) error {
	args := m.Called(ctx, id, objectKey)
	return args.Error(0)
}

func (m *MockReportRepository) List(ctx context.Context, limit, offset int) ([]domain.EvalReport, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.EvalReport), args.Error(1)
}

// MockAnalyticsRepository is a mock implementation of service.AnalyticsRepository
type MockAnalyticsRepository struct {
	mock.Mock
}

func (m *MockAnalyticsRepository) FailedTraces(ctx context.Context, window time.Duration, limit int) ([]domain.FailedTrace, error) {
	args := m.Called(ctx, window, limit)
	return args.Get(0).([]domain.FailedTrace), args.Error(1)
}

func (m *MockAnalyticsRepository) ErrorSummary(ctx context.Context, window time.Duration) (*domain.ErrorSummary, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ErrorSummary), args.Error(1)
}

func (m *MockAnalyticsRepository) SlowTraces(ctx context.Context, thresholdMs float64, window time.Duration, limit int) ([]domain.SlowTrace, error) {
	args := m.Called(ctx, thresholdMs, window, limit)
	return args.Get(0).([]domain.SlowTrace), args.Error(1)
}

func (m *MockAnalyticsRepository) LatencyPercentiles(ctx context.Context, window time.Duration) (*domain.LatencyStats, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LatencyStats), args.Error(1)
}

func (m *MockAnalyticsRepository) SpanPerformance(ctx context.Context, spanType *domain.SpanType, window time.Duration) ([]domain.SpanPerfRow, error) {
	args := m.Called(ctx, spanType, window)
	return args.Get(0).([]domain.SpanPerfRow), args.Error(1)
}

func (m *MockAnalyticsRepository) RequestVolume(ctx context.Context, window time.Duration, bucket time.Duration) ([]domain.VolumeBucket, error) {
	args := m.Called(ctx, window, bucket)
	return args.Get(0).([]domain.VolumeBucket), args.Error(1)
}

func (m *MockAnalyticsRepository) UserActivity(ctx context.Context, window time.Duration, limit int) ([]domain.UserActivityRow, error) {
	args := m.Called(ctx, window, limit)
	return args.Get(0).([]domain.UserActivityRow), args.Error(1)
}

func (m *MockAnalyticsRepository) RequestCounts(ctx context.Context, window time.Duration) (uint64, uint64, error) {
	args := m.Called(ctx, window)
	return args.Get(0).(uint64), args.Get(1).(uint64), args.Error(2)
}
