package history

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/modelsite/modelsite-go/pkg/metadatastore"
	"github.com/modelsite/modelsite-go/pkg/models"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()
	store, err := metadatastore.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, zaptest.NewLogger(t))
}

func TestHeadline(t *testing.T) {
	tests := []struct {
		name    string
		metrics map[string]any
		want    *float64
	}{
		{"accuracy wins", map[string]any{"accuracy": 0.9, "r2_score": 0.5, "mse": 2.0}, ptr(0.9)},
		{"r2_score", map[string]any{"r2_score": 0.75, "mse": 2.0}, ptr(0.75)},
		{"r2", map[string]any{"r2": 0.6}, ptr(0.6)},
		{"inverse mse", map[string]any{"mse": 4.0, "mae": 1.0}, ptr(0.25)},
		{"zero mse", map[string]any{"mse": 0.0}, nil},
		{"non-numeric accuracy", map[string]any{"accuracy": "high", "mse": 2.0}, ptr(0.5)},
		{"nothing usable", map[string]any{"confusion_matrix": [][]int{{1}}}, nil},
		{"empty", map[string]any{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Headline(tt.metrics)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-12)
		})
	}
}

func ptr(v float64) *float64 {
	return &v
}

func TestSaveAndListRoundTrip(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	saved := map[string]any{
		"accuracy":         0.8667,
		"f1_score":         0.86,
		"confusion_matrix": []any{[]any{5.0, 1.0}, []any{1.0, 8.0}},
	}
	raw, err := json.Marshal(saved)
	require.NoError(t, err)

	entry, err := svc.Save(ctx, &models.SaveResultRequest{
		Username:     "alice",
		DatasetName:  "iris.csv",
		ModelType:    "Random Forest (Classification)",
		TargetColumn: "species",
		Metrics:      string(raw),
	})
	require.NoError(t, err)
	require.NotNil(t, entry.Metric)
	assert.Equal(t, 0.8667, *entry.Metric)

	history, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal(history[0].Metrics, &got))
	assert.Equal(t, saved, got)
	assert.Equal(t, "Random Forest (Classification)", history[0].ModelType)
}

func TestSaveValidation(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, &models.SaveResultRequest{
		Username: "alice", DatasetName: "d.csv", ModelType: "m", TargetColumn: "y", Metrics: "{not json",
	})
	assert.Equal(t, models.EMalformedJSON, models.ErrorCode(err))

	_, err = svc.Save(ctx, &models.SaveResultRequest{DatasetName: "d.csv", ModelType: "m", TargetColumn: "y", Metrics: "{}"})
	assert.Equal(t, models.EInvalid, models.ErrorCode(err))
}

func TestListEmptyAndClear(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	history, err := svc.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	for _, name := range []string{"a.csv", "b.csv"} {
		_, err := svc.Save(ctx, &models.SaveResultRequest{
			Username: "bob", DatasetName: name, ModelType: "Linear Regression", TargetColumn: "y",
			Metrics: `{"mse": 2.0}`,
		})
		require.NoError(t, err)
	}

	history, err = svc.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "b.csv", history[0].DatasetName)
	require.NotNil(t, history[0].Metric)
	assert.Equal(t, 0.5, *history[0].Metric)

	n, err := svc.Clear(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	history, err = svc.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, history)
}
