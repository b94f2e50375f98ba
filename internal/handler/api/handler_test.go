package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"SignalPulse/internal/domain/models"
	drepo "SignalPulse/internal/domain/repository"
	"SignalPulse/internal/repository"
	"SignalPulse/internal/services/analytics"
	"SignalPulse/internal/usecase"
	xhttp "SignalPulse/pkg/http"
	"SignalPulse/pkg/http/middleware"
)

var today = time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)

type nopMetrics struct{}

func (nopMetrics) RecordCycle(float64, int, int, int) {}
func (nopMetrics) RecordProposal(string, bool)        {}
func (nopMetrics) RecordFetch(string, float64, error) {}
func (nopMetrics) RecordAttribution(string)           {}
func (nopMetrics) RecordError(string)                 {}

type mapAggregates struct {
	mu   sync.Mutex
	rows map[string]models.AggregateMetricsRecord
}

func (m *mapAggregates) Upsert(_ context.Context, recs []models.AggregateMetricsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.rows[r.Date.Format("2006-01-02")+r.Scope.String()] = r
	}
	return nil
}

func (m *mapAggregates) Get(_ context.Context, d time.Time, s models.Scope) (*models.AggregateMetricsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[d.Format("2006-01-02")+s.String()]
	if !ok {
		return nil, drepo.ErrNotFound
	}
	return &r, nil
}

func (m *mapAggregates) Close() error { return nil }

type exitAttributor struct{}

func (exitAttributor) Attribute(_ context.Context, s models.Signal) (models.PerformanceRecord, error) {
	return models.PerformanceRecord{
		SignalID:   s.ID,
		Symbol:     s.Symbol,
		AssetClass: s.AssetClass,
		Strategy:   s.Strategy,
		Direction:  s.Direction,
		Entry:      s.Entry,
		Exit:       *s.ExitPrice,
		EntryTime:  s.CreatedAt,
		ExitTime:   *s.ExitTime,
		PnLPercent: s.PnLPercent(*s.ExitPrice),
	}, nil
}

type apiFixture struct {
	e         *echo.Echo
	signals   drepo.SignalStore
	perf      *usecase.PerformanceService
	signalsH  *SignalsHandler
	analytics *AnalyticsHandler
}

func newAPIFixture(t *testing.T, tierFromToken bool) *apiFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.Migrate(db))

	f := &apiFixture{signals: repository.NewSignalStore(db)}
	perfStore := repository.NewPerformanceStore(db)
	aggs := &mapAggregates{rows: map[string]models.AggregateMetricsRecord{}}
	f.perf = usecase.NewPerformanceService(f.signals, perfStore, aggs, exitAttributor{},
		analytics.Params{RiskFreeRate: 0.05, TradingDays: 252}, nopMetrics{}, nil)
	lifecycle := usecase.NewSignalLifecycle(f.signals, nil, nopMetrics{}, nil)

	f.signalsH = NewSignalsHandler(nil, lifecycle, f.perf, tierFromToken)
	f.signalsH.now = func() time.Time { return today }
	f.analytics = NewAnalyticsHandler(nil, f.perf)
	f.analytics.now = func() time.Time { return today }

	srv := xhttp.NewServer(nil, []xhttp.Handler{f.signalsH, f.analytics}, xhttp.WithCORS(false))
	f.e = srv.Echo()
	if tierFromToken {
		f.e.Use(middleware.TierAuth([]byte("secret"), "signalpulse"))
	}
	return f
}

func (f *apiFixture) seed(t *testing.T, signals ...models.Signal) {
	t.Helper()
	_, err := f.signals.Insert(context.Background(), signals)
	require.NoError(t, err)
}

func signalFor(id string, tier models.Tier, conf int) models.Signal {
	return models.Signal{
		ID:         id,
		Key:        "K_" + id,
		Symbol:     "AAPL",
		AssetClass: models.AssetUSEquity,
		Strategy:   models.StrategyMomentum,
		Setup:      "BREAKOUT",
		Type:       models.TypeIntraday,
		Timeframe:  "5m",
		Direction:  models.Buy,
		Entry:      100,
		Stop:       95,
		Target:     110,
		RiskReward: 2,
		Confidence: conf,
		Tier:       tier,
		Status:     models.StatusActive,
		CreatedAt:  time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
	}
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (f *apiFixture) do(t *testing.T, method, target, body string, hdr map[string]string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func listIDs(t *testing.T, env envelope) []string {
	t.Helper()
	var page struct {
		Rows  []models.Signal `json:"rows"`
		Total int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	ids := make([]string, 0, len(page.Rows))
	for _, s := range page.Rows {
		ids = append(ids, s.ID)
	}
	assert.EqualValues(t, len(ids), page.Total)
	return ids
}

func TestSignals_ListByTierAndDate(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, false)
	f.seed(t,
		signalFor("basic", models.TierBasic, 6),
		signalFor("pro", models.TierPro, 8),
		signalFor("ent", models.TierEnterprise, 9),
	)

	code, env := f.do(t, http.MethodGet, "/api/signals?tier=PRO", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"pro", "basic"}, listIDs(t, env))

	_, env = f.do(t, http.MethodGet, "/api/signals", "", nil)
	assert.Equal(t, []string{"basic"}, listIDs(t, env), "no tier means BASIC")

	_, env = f.do(t, http.MethodGet, "/api/signals?tier=ENTERPRISE&date=2025-03-04", "", nil)
	assert.Empty(t, listIDs(t, env))

	code, _ = f.do(t, http.MethodGet, "/api/signals?tier=GOLD", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodGet, "/api/signals?date=03-03-2025", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSignals_TierComesFromToken(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, true)
	f.seed(t, signalFor("basic", models.TierBasic, 6), signalFor("ent", models.TierEnterprise, 9))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.TierClaims{
		Tier:             "enterprise",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "signalpulse"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, env := f.do(t, http.MethodGet, "/api/signals?tier=BASIC", "", map[string]string{
		echo.HeaderAuthorization: "Bearer " + token,
	})
	assert.Equal(t, []string{"ent", "basic"}, listIDs(t, env), "claim wins over the query")

	_, env = f.do(t, http.MethodGet, "/api/signals?tier=ENTERPRISE", "", nil)
	assert.Equal(t, []string{"basic"}, listIDs(t, env), "anonymous callers see BASIC")
}

func TestSignals_Lifecycle(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, false)
	f.seed(t, signalFor("a", models.TierBasic, 7), signalFor("b", models.TierBasic, 7))

	code, env := f.do(t, http.MethodGet, "/api/signals/a", "", nil)
	require.Equal(t, http.StatusOK, code)
	var got models.Signal
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "K_a", got.Key)

	code, _ = f.do(t, http.MethodGet, "/api/signals/zzz", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/api/signals/a/close", `{"exit_price":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodPost, "/api/signals/a/close", `{"exit_price":104,"exit_time":"2025-03-02T10:00:00Z"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code, "exit before entry")

	code, env = f.do(t, http.MethodPost, "/api/signals/a/close", `{"exit_price":110,"exit_time":"2025-03-03T12:00:00Z"}`, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.StatusClosed, got.Status)
	require.NotNil(t, got.ExitPrice)
	assert.Equal(t, 110.0, *got.ExitPrice)

	code, _ = f.do(t, http.MethodPost, "/api/signals/a/close", `{"exit_price":111}`, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = f.do(t, http.MethodPost, "/api/signals/a/cancel", "", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = f.do(t, http.MethodPost, "/api/signals/b/cancel", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.StatusCancelled, got.Status)

	code, _ = f.do(t, http.MethodGet, "/api/signals/a/performance", "", nil)
	assert.Equal(t, http.StatusNotFound, code, "not attributed yet")

	_, err := f.perf.AttributeSignal(context.Background(), "a")
	require.NoError(t, err)
	code, env = f.do(t, http.MethodGet, "/api/signals/a/performance", "", nil)
	require.Equal(t, http.StatusOK, code)
	var rec models.PerformanceRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.InDelta(t, 10.0, rec.PnLPercent, 1e-9)
}

func TestAnalytics_AggregateAndReport(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, false)
	f.seed(t, signalFor("a", models.TierBasic, 7))
	ctx := context.Background()
	_, err := f.signals.Close(ctx, "a", 110, time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = f.perf.AttributeSignal(ctx, "a")
	require.NoError(t, err)

	code, env := f.do(t, http.MethodGet, "/api/metrics/aggregate", "", nil)
	require.Equal(t, http.StatusOK, code)
	var agg struct {
		TotalSignals int `json:"total_signals"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &agg))
	assert.Equal(t, 1, agg.TotalSignals, "computed live for today")

	code, env = f.do(t, http.MethodGet, "/api/metrics/aggregate?date=2025-03-03&scope=STRATEGY&value=TREND", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &agg))
	assert.Zero(t, agg.TotalSignals)

	code, _ = f.do(t, http.MethodGet, "/api/metrics/aggregate?scope=STRATEGY", "", nil)
	assert.Equal(t, http.StatusBadRequest, code, "scope value required")

	code, env = f.do(t, http.MethodGet, "/api/performance/report?from=2025-03-01&to=2025-03-03", "", nil)
	require.Equal(t, http.StatusOK, code)
	var rep analytics.Report
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 1, rep.Overall.TotalSignals)
	assert.Nil(t, rep.Overall.ProfitFactor)

	code, _ = f.do(t, http.MethodGet, "/api/performance/report?from=2025-03-05&to=2025-03-03", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
