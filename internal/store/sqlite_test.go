package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricing-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRequest() model.AnalysisRequest {
	return model.AnalysisRequest{
		ProductRef:          "MLM123",
		CostPrice:           800,
		TargetMarginPercent: 30,
		PriceTolerance:      0.3,
		MaxOffers:           50,
	}
}

func TestCreateAndGetRun(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "MLM123", got.Request.ProductRef)
	assert.Equal(t, 800.0, got.Request.CostPrice)
	assert.Nil(t, got.Result)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	assert.Error(t, err)
}

func TestUpdateRunStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testRequest())
	require.NoError(t, err)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusSearched))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSearched, got.Status)

	assert.Error(t, s.UpdateRunStatus(ctx, "missing", model.RunStatusAborted))
}

func TestSaveRunResultRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testRequest())
	require.NoError(t, err)

	result := &model.AnalysisResult{
		RunID:   run.ID,
		Request: testRequest(),
		Pivot:   model.PivotProduct{ProductID: "MLM123", Title: "Taladro", Price: 1500},
		Comparables: model.ComparableSet{
			Offers:     []model.Offer{{ItemID: "MLM9", Price: 1400, Condition: "new"}},
			Pass1Count: 1,
		},
		Recommendation: &model.PricingRecommendation{
			RecommendedPrice: 1350,
			Strategy:         model.StrategyCompetitive,
			ProfitComputed:   true,
		},
		Stages: []model.StageResult{{Name: "extract", Status: model.StageStatusComplete}},
	}

	require.NoError(t, s.SaveRunResult(ctx, run.ID, model.RunStatusSummarized, result))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSummarized, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1350.0, got.Result.Recommendation.RecommendedPrice)
	assert.Len(t, got.Result.Comparables.Offers, 1)
}

func TestListRunsFilters(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	r1, err := s.CreateRun(ctx, testRequest())
	require.NoError(t, err)
	other := testRequest()
	other.ProductRef = "MLM999"
	_, err = s.CreateRun(ctx, other)
	require.NoError(t, err)

	require.NoError(t, s.UpdateRunStatus(ctx, r1.ID, model.RunStatusAborted))

	aborted, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusAborted})
	require.NoError(t, err)
	require.Len(t, aborted, 1)
	assert.Equal(t, r1.ID, aborted[0].ID)

	byRef, err := s.ListRuns(ctx, RunFilter{ProductRef: "MLM999"})
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	assert.Equal(t, "MLM999", byRef[0].Request.ProductRef)

	all, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStageLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testRequest())
	require.NoError(t, err)

	stageID, err := s.CreateStage(ctx, run.ID, "classify")
	require.NoError(t, err)
	assert.NotEmpty(t, stageID)

	require.NoError(t, s.CompleteStage(ctx, stageID, &model.StageResult{
		Name:   "classify",
		Status: model.StageStatusDegraded,
		Error:  "3 offers unclassified",
	}))

	assert.Error(t, s.CompleteStage(ctx, "missing", &model.StageResult{Status: model.StageStatusComplete}))
}
