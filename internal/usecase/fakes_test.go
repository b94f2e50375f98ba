package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"SignalPulse/internal/domain/models"
	drepo "SignalPulse/internal/domain/repository"
	"SignalPulse/internal/services/indicators"
)

type fakeProvider struct {
	mu    sync.Mutex
	bars  map[string][]models.Bar
	errs  map[string]error
	calls []string
}

func (p *fakeProvider) Fetch(ctx context.Context, symbol string, period drepo.Period, interval drepo.Interval) ([]models.Bar, error) {
	p.mu.Lock()
	p.calls = append(p.calls, symbol+"|"+string(interval))
	bars, err := p.bars[symbol], p.errs[symbol]
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

func (p *fakeProvider) FetchRange(ctx context.Context, symbol string, interval drepo.Interval, from, to time.Time) ([]models.Bar, error) {
	return p.Fetch(ctx, symbol, "", interval)
}

func (p *fakeProvider) callCount(interval drepo.Interval) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if strings.HasSuffix(c, "|"+string(interval)) {
			n++
		}
	}
	return n
}

func bars(n int, start float64) []models.Bar {
	t0 := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := range out {
		c := start + float64(i)*0.1
		out[i] = models.Bar{
			Time:   t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

type stubDetector struct {
	strategy models.Strategy
	horizon  models.Horizon
	propose  func(f *indicators.Frame) (models.Proposal, bool)
}

func (d stubDetector) Strategy() models.Strategy { return d.strategy }
func (d stubDetector) Horizon() models.Horizon   { return d.horizon }
func (d stubDetector) Detect(f *indicators.Frame) (models.Proposal, bool) {
	return d.propose(f)
}

type stubScorer map[models.Strategy]int

func (s stubScorer) Score(_ *indicators.Frame, strategy models.Strategy) int {
	if c, ok := s[strategy]; ok {
		return c
	}
	return 5
}

type fakeMetrics struct {
	mu        sync.Mutex
	cycles    int
	failed    int
	emitted   int
	proposals map[string]int
	attrib    map[string]int
	errors    map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{proposals: map[string]int{}, attrib: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordCycle(_ float64, _ int, failed, emitted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
	m.failed, m.emitted = failed, emitted
}

func (m *fakeMetrics) RecordProposal(strategy string, accepted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accepted {
		m.proposals[strategy+":ok"]++
	} else {
		m.proposals[strategy+":rejected"]++
	}
}

func (m *fakeMetrics) RecordFetch(string, float64, error) {}

func (m *fakeMetrics) RecordAttribution(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attrib[outcome]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

type memSignals struct {
	mu      sync.Mutex
	byID    map[string]models.Signal
	keys    map[string]bool
	order   []string
	perf    *memPerformance
	listErr error
}

func newMemSignals() *memSignals {
	return &memSignals{byID: map[string]models.Signal{}, keys: map[string]bool{}}
}

func (m *memSignals) Insert(_ context.Context, signals []models.Signal) ([]models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var created []models.Signal
	for _, s := range signals {
		if m.keys[s.Key] {
			continue
		}
		m.keys[s.Key] = true
		m.byID[s.ID] = s
		m.order = append(m.order, s.ID)
		created = append(created, s)
	}
	return created, nil
}

func (m *memSignals) Get(_ context.Context, id string) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, drepo.ErrNotFound
	}
	return &s, nil
}

func (m *memSignals) List(_ context.Context, f drepo.SignalFilter) ([]models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tiers := map[models.Tier]bool{}
	for _, t := range f.Tiers {
		tiers[t] = true
	}
	var out []models.Signal
	for _, id := range m.order {
		s := m.byID[id]
		if len(tiers) > 0 && !tiers[s.Tier] {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && s.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !s.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memSignals) transition(id string, fn func(*models.Signal)) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, drepo.ErrNotFound
	}
	if s.Status != models.StatusActive {
		return &s, drepo.ErrInvalidTransition
	}
	fn(&s)
	m.byID[id] = s
	return &s, nil
}

func (m *memSignals) Close(_ context.Context, id string, exitPrice float64, exitTime time.Time) (*models.Signal, error) {
	return m.transition(id, func(s *models.Signal) {
		s.Status = models.StatusClosed
		s.ExitPrice = &exitPrice
		s.ExitTime = &exitTime
	})
}

func (m *memSignals) Cancel(_ context.Context, id string) (*models.Signal, error) {
	return m.transition(id, func(s *models.Signal) { s.Status = models.StatusCancelled })
}

func (m *memSignals) ListUnattributed(ctx context.Context, _ int) ([]models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Signal
	for _, id := range m.order {
		s := m.byID[id]
		if s.Status != models.StatusClosed {
			continue
		}
		if m.perf != nil && m.perf.has(id) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type memPerformance struct {
	mu   sync.Mutex
	recs map[string]models.PerformanceRecord
}

func newMemPerformance() *memPerformance {
	return &memPerformance{recs: map[string]models.PerformanceRecord{}}
}

func (m *memPerformance) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.recs[id]
	return ok
}

func (m *memPerformance) Save(_ context.Context, rec models.PerformanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[rec.SignalID]; ok {
		return false, nil
	}
	m.recs[rec.SignalID] = rec
	return true, nil
}

func (m *memPerformance) Get(_ context.Context, id string) (*models.PerformanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return nil, drepo.ErrNotFound
	}
	return &r, nil
}

func (m *memPerformance) ListByEntryDate(_ context.Context, from, to time.Time) ([]models.PerformanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PerformanceRecord
	for _, r := range m.recs {
		if !r.EntryTime.Before(from) && r.EntryTime.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignalID < out[j].SignalID })
	return out, nil
}

type memAggregates struct {
	mu   sync.Mutex
	rows map[string]models.AggregateMetricsRecord
	err  error
}

func newMemAggregates() *memAggregates {
	return &memAggregates{rows: map[string]models.AggregateMetricsRecord{}}
}

func aggKey(d time.Time, s models.Scope) string { return d.Format("2006-01-02") + "/" + s.String() }

func (m *memAggregates) Upsert(_ context.Context, recs []models.AggregateMetricsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, r := range recs {
		m.rows[aggKey(r.Date, r.Scope)] = r
	}
	return nil
}

func (m *memAggregates) Get(_ context.Context, d time.Time, s models.Scope) (*models.AggregateMetricsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[aggKey(d, s)]
	if !ok {
		return nil, drepo.ErrNotFound
	}
	return &r, nil
}

func (m *memAggregates) Close() error { return nil }

type recPublisher struct {
	mu      sync.Mutex
	emitted []models.Signal
	closed  []models.Signal
	err     error
}

func (p *recPublisher) PublishEmitted(_ context.Context, s []models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.emitted = append(p.emitted, s...)
	return nil
}

func (p *recPublisher) PublishClosed(_ context.Context, s models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.closed = append(p.closed, s)
	return nil
}

func (p *recPublisher) Close() error { return nil }

// pnlAttributor derives a minimal record from the exit, enough for aggregates.
type pnlAttributor struct {
	calls int
	fail  map[string]error
}

var errNoExit = errors.New("no exit")

func (a *pnlAttributor) Attribute(_ context.Context, s models.Signal) (models.PerformanceRecord, error) {
	a.calls++
	if err := a.fail[s.ID]; err != nil {
		return models.PerformanceRecord{}, err
	}
	if !s.HasExit() {
		return models.PerformanceRecord{}, errNoExit
	}
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

type recQueue struct {
	mu   sync.Mutex
	msgs []struct {
		Type    string
		Payload interface{}
	}
}

func (q *recQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, struct {
		Type    string
		Payload interface{}
	}{msgType, payload})
	return nil
}
