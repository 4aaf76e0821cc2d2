// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package weights

import (
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/screening-engine/pkg/types"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// history draws records where model "sharp" tracks the label closely and
// model "noisy" barely does.
func history(seed int64, n int) ([][]float64, []bool) {
	rng := rand.New(rand.NewSource(seed))
	scores := make([][]float64, n)
	labels := make([]bool, n)
	for i := range scores {
		labels[i] = i%2 == 0
		sharp, noisy := 0.15, 0.45
		if labels[i] {
			sharp, noisy = 0.85, 0.55
		}
		scores[i] = []float64{
			clip(sharp + rng.NormFloat64()*0.1),
			clip(noisy + rng.NormFloat64()*0.3),
		}
	}
	return scores, labels
}

func assertSimplex(t *testing.T, w types.Weights, eps float64) {
	t.Helper()
	var sum float64
	for id, v := range w {
		assert.GreaterOrEqual(t, v, eps-1e-12, id)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEqual(t *testing.T) {
	w := Equal([]string{"a", "b", "c", "d"})
	assert.Equal(t, types.Weights{"a": 0.25, "b": 0.25, "c": 0.25, "d": 0.25}, w)
}

func TestFitFavorsInformativeModel(t *testing.T) {
	scores, labels := history(1, 200)
	opt := Optimizer{Epsilon: 0.05, Seed: 9, Logger: quiet()}

	w, err := opt.Fit([]string{"sharp", "noisy"}, scores, labels)
	require.NoError(t, err)
	assertSimplex(t, w, 0.05)
	assert.Greater(t, w["sharp"], w["noisy"])
}

func TestFitIsSeedInsensitive(t *testing.T) {
	scores, labels := history(2, 200)
	ids := []string{"sharp", "noisy"}

	w1, err := Optimizer{Seed: 1, Logger: quiet()}.Fit(ids, scores, labels)
	require.NoError(t, err)
	w2, err := Optimizer{Seed: 12345, Logger: quiet()}.Fit(ids, scores, labels)
	require.NoError(t, err)

	for _, id := range ids {
		assert.InDelta(t, w1[id], w2[id], 0.02, id)
	}
}

func TestFitSingleClassReturnsEqualWeights(t *testing.T) {
	scores := [][]float64{{0.9, 0.2}, {0.8, 0.3}}
	w, err := Optimizer{Logger: quiet()}.Fit([]string{"a", "b"}, scores, []bool{true, true})
	assert.ErrorIs(t, err, ErrInsufficientLabels)
	assert.Equal(t, Equal([]string{"a", "b"}), w)
}

func TestFitSingleModel(t *testing.T) {
	w, err := Optimizer{}.Fit([]string{"only"}, [][]float64{{0.9}, {0.1}}, []bool{true, false})
	require.NoError(t, err)
	assert.Equal(t, types.Weights{"only": 1}, w)
}

func TestFitValidation(t *testing.T) {
	tests := []struct {
		name   string
		ids    []string
		scores [][]float64
		labels []bool
		eps    float64
	}{
		{"no models", nil, nil, nil, 0},
		{"label count", []string{"a"}, [][]float64{{0.5}}, []bool{true, false}, 0},
		{"ragged row", []string{"a", "b"}, [][]float64{{0.5}, {0.1, 0.2}}, []bool{true, false}, 0},
		{"infeasible floor", []string{"a", "b"}, [][]float64{{0.5, 0.5}, {0.1, 0.2}}, []bool{true, false}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Optimizer{Epsilon: tt.eps}.Fit(tt.ids, tt.scores, tt.labels)
			assert.Error(t, err)
			assert.NotErrorIs(t, err, ErrInsufficientLabels)
		})
	}
}

func TestFitHistorySkipsIncompleteRecords(t *testing.T) {
	scores, labels := history(3, 100)
	var hist []types.LabeledOutputs
	for i, row := range scores {
		hist = append(hist, types.LabeledOutputs{
			RecordID: "r",
			Include:  labels[i],
			Outputs: []types.ModelOutput{
				{ModelID: "sharp", Decision: types.DecisionInclude, Score: row[0], Confidence: 0.9},
				{ModelID: "noisy", Decision: types.DecisionInclude, Score: row[1], Confidence: 0.9},
			},
		})
	}
	hist = append(hist, types.LabeledOutputs{
		Include: false,
		Outputs: []types.ModelOutput{
			{ModelID: "sharp", Score: 0.99, Confidence: 0.9},
			{ModelID: "noisy", Score: 0.5, Error: "timed out"},
		},
	})

	w, err := Optimizer{Logger: quiet()}.FitHistory(hist)
	require.NoError(t, err)
	assertSimplex(t, w, DefaultEpsilon)
	assert.Greater(t, w["sharp"], w["noisy"])
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts", "weights.json")
	want := types.Weights{"claude": 0.7, "llama": 0.3}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got["claude"], 1e-12)
	assert.InDelta(t, 0.3, got["llama"], 1e-12)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	w, err := Load(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, w)

	path := filepath.Join(dir, "unnormalized.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 2, "b": 6}`), 0o644))
	w, err = Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, w["a"], 1e-12)
	assert.InDelta(t, 0.75, w["b"], 1e-12)

	require.NoError(t, os.WriteFile(path, []byte(`{"a": 1, "b": 0}`), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "must be positive")

	require.NoError(t, os.WriteFile(path, []byte(`[1,2]`), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
