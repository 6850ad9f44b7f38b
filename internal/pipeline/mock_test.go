package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/agents"
	"github.com/sells-group/pricing-cli/internal/commission"
	"github.com/sells-group/pricing-cli/internal/config"
	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/store"
	"github.com/sells-group/pricing-cli/internal/usage"
)

// mockStore is an in-memory Store for pipeline tests.
type mockStore struct {
	mu       sync.Mutex
	runs     map[string]*model.Run
	statuses []model.RunStatus
	stages   []string
	nextID   int
}

func newMockStore() *mockStore {
	return &mockStore{runs: make(map[string]*model.Run)}
}

func (m *mockStore) CreateRun(_ context.Context, req model.AnalysisRequest) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	run := &model.Run{ID: fmt.Sprintf("run-%d", m.nextID), Request: req, Status: model.RunStatusQueued}
	m.runs[run.ID] = run
	return run, nil
}

func (m *mockStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	if r, ok := m.runs[runID]; ok {
		r.Status = status
	}
	return nil
}

func (m *mockStore) SaveRunResult(_ context.Context, runID string, status model.RunStatus, result *model.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	if r, ok := m.runs[runID]; ok {
		r.Status = status
		r.Result = result
	}
	return nil
}

func (m *mockStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, eris.New("run not found")
	}
	return r, nil
}

func (m *mockStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Run
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockStore) CreateStage(_ context.Context, _ string, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, name)
	return "stage-" + name, nil
}

func (m *mockStore) CompleteStage(_ context.Context, _ string, _ *model.StageResult) error {
	return nil
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

// fakeExtractor returns a fixed pivot or error.
type fakeExtractor struct {
	pivot model.PivotProduct
	err   error
}

func (f *fakeExtractor) Extract(context.Context, string) (model.PivotProduct, error) {
	if f.err != nil {
		return model.PivotProduct{}, f.err
	}
	return f.pivot, nil
}

// fakeSearcher returns canned offers per query.
type fakeSearcher struct {
	mu      sync.Mutex
	byQuery map[string][]model.Offer
	errs    map[string]error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _, _ float64, _ int) ([]model.Offer, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.byQuery[query], nil
}

// stub agents

type stubEnricher struct {
	spec model.EnrichedSpec
	err  error
}

func (s *stubEnricher) Enrich(context.Context, model.PivotProduct) (model.EnrichedSpec, error) {
	return s.spec, s.err
}

// cancellingEnricher aborts the whole run mid-stage, the way a user Ctrl-C
// lands while an agent call is in flight.
type cancellingEnricher struct {
	cancel context.CancelFunc
}

func (c *cancellingEnricher) Enrich(ctx context.Context, _ model.PivotProduct) (model.EnrichedSpec, error) {
	c.cancel()
	return model.EnrichedSpec{}, ctx.Err()
}

type stubPlanner struct {
	strategy model.SearchStrategy
	err      error
}

func (s *stubPlanner) Plan(context.Context, model.PivotProduct, model.EnrichedSpec) (model.SearchStrategy, error) {
	return s.strategy, s.err
}

// stubClassifier labels offers from a canned map; missing entries return an
// unparsable-response error.
type stubClassifier struct {
	byItem map[string]model.Classification
}

func (s *stubClassifier) Classify(_ context.Context, _ model.PivotProduct, _ model.EnrichedSpec, offer model.Offer) (model.Classification, error) {
	c, ok := s.byItem[offer.ItemID]
	if !ok {
		return model.Classification{}, eris.Wrap(agents.ErrUnparsable, "classifier")
	}
	return c, nil
}

type stubRecommender struct {
	rec model.PricingRecommendation
	err error
}

func (s *stubRecommender) Recommend(context.Context, model.PivotProduct, model.AnalysisRequest, model.PriceStatistics) (model.PricingRecommendation, error) {
	return s.rec, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		Rates:      usage.DefaultRates(),
		Commission: commission.DefaultConfig(),
		Pipeline: config.PipelineConfig{
			PriceTolerance:      0.30,
			MaxOffers:           50,
			TargetMarginPercent: 30,
			SearchFanout:        3,
			ClassifyConcurrency: 4,
			ConfidenceThreshold: 0.7,
			MinComparables:      3,
			StageTimeoutSecs:    10,
		},
	}
}

func staticAgents(set AgentSet) AgentFactory {
	return func(agents.UsageRecorder) AgentSet { return set }
}

func comparable(itemID string, conf float64) model.Classification {
	return model.Classification{ItemID: itemID, Label: model.LabelComparable, Confidence: conf}
}

func excluded(itemID string, conf float64) model.Classification {
	return model.Classification{ItemID: itemID, Label: model.LabelExcluded, Confidence: conf}
}
