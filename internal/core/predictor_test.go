package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPredictor(model Model, opts PredictorOptions) *Predictor {
	cfg := testDataConfig()
	return NewPredictor(cfg, NewSentenceEncoder(residueTokenizer{}, cfg.Encoder), model, opts)
}

func expectedAttention(from, to int) []float32 {
	out := make([]float32, 0, to-from+1)
	for v := from; v <= to; v++ {
		out = append(out, float32(v))
	}
	return out
}

func TestPredictGroupsByCdr3bLength(t *testing.T) {
	model := &cassModel{}
	predictor := newTestPredictor(model, PredictorOptions{})

	cdr3bs := SplitSeqs("RASSFVRGGSYNSPLHF CSARDNERAMNTGELFF CASSPDIEQFF CASSSSRRNTGELFF")
	groups, err := predictor.Predict(context.Background(), "YLQPRTFLL", cdr3bs)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, 1, model.callCount())

	assert.Equal(t, 11, groups[0].Cdr3bLen)
	require.Len(t, groups[0].Predictions, 1)
	assert.Equal(t, Pair{Epitope: "YLQPRTFLL", Cdr3b: "CASSPDIEQFF"}, groups[0].Predictions[0].Pair)
	assert.Equal(t, 1, groups[0].Predictions[0].Label)
	// key position k carries weight k+1; positions 1..20 cover the 9+11 residues.
	assert.InDeltaSlice(t, expectedAttention(2, 21), groups[0].PositiveAttention, 1e-5)

	assert.Equal(t, 15, groups[1].Cdr3bLen)
	assert.Equal(t, "CASSSSRRNTGELFF", groups[1].Predictions[0].Cdr3b)
	assert.Len(t, groups[1].PositiveAttention, 9+15)

	assert.Equal(t, 17, groups[2].Cdr3bLen)
	require.Len(t, groups[2].Predictions, 2)
	assert.Equal(t, "RASSFVRGGSYNSPLHF", groups[2].Predictions[0].Cdr3b)
	assert.Equal(t, "CSARDNERAMNTGELFF", groups[2].Predictions[1].Cdr3b)
	assert.Equal(t, 0, groups[2].Predictions[0].Label)
	assert.Nil(t, groups[2].PositiveAttention)

	for _, pred := range groups[2].Predictions {
		assert.Len(t, pred.Attention, 40)
	}
}

func TestPredictValidationSkipsModel(t *testing.T) {
	model := &cassModel{}
	predictor := newTestPredictor(model, PredictorOptions{})

	_, err := predictor.Predict(context.Background(), "YLQ", []string{"CASSPDIEQFF"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, model.callCount())
}

func TestPredictBatches(t *testing.T) {
	model := &cassModel{}
	predictor := newTestPredictor(model, PredictorOptions{BatchSize: 2, MaxWorkers: 2})

	cdr3bs := []string{"CASSA", "CASRG", "CASSC", "CASSD", "CSARE"}
	groups, err := predictor.Predict(context.Background(), "YLQPRTFLL", cdr3bs)
	require.NoError(t, err)

	assert.Equal(t, 3, model.callCount())
	for _, pairs := range model.batches {
		assert.LessOrEqual(t, len(pairs), 2)
	}

	require.Len(t, groups, 1)
	var got []string
	var labels []int
	for _, pred := range groups[0].Predictions {
		got = append(got, pred.Cdr3b)
		labels = append(labels, pred.Label)
	}
	assert.Equal(t, cdr3bs, got)
	assert.Equal(t, []int{1, 0, 1, 1, 0}, labels)
}

func TestPredictUsesCache(t *testing.T) {
	model := &cassModel{}
	predictor := newTestPredictor(model, PredictorOptions{Cache: NewPredictionCache(1<<20, 0)})

	first, err := predictor.Predict(context.Background(), "YLQPRTFLL", []string{"CASSPDIEQFF", "CSARG"})
	require.NoError(t, err)
	assert.Equal(t, 1, model.callCount())

	second, err := predictor.Predict(context.Background(), "YLQPRTFLL", []string{"CASSPDIEQFF", "CSARG"})
	require.NoError(t, err)
	assert.Equal(t, 1, model.callCount())
	assert.Equal(t, first, second)

	_, err = predictor.Predict(context.Background(), "YLQPRTFLL", []string{"CSARG", "CASSL"})
	require.NoError(t, err)
	require.Equal(t, 2, model.callCount())
	assert.Equal(t, []Pair{{Epitope: "YLQPRTFLL", Cdr3b: "CASSL"}}, model.batches[1])
}

func TestPredictModelError(t *testing.T) {
	model := &cassModel{err: errors.New("device lost")}
	predictor := newTestPredictor(model, PredictorOptions{})

	_, err := predictor.Predict(context.Background(), "YLQPRTFLL", []string{"CASSPDIEQFF"})
	assert.ErrorContains(t, err, "device lost")
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

type shortModel struct{ cassModel }

func (m *shortModel) Predict(ctx context.Context, batch *Batch) (*ModelOutput, error) {
	return &ModelOutput{
		Logits:     Tensor{Shape: []int64{1, 2}, Data: []float32{0, 1}},
		Attentions: Tensor{Shape: []int64{1, 1, 1, 1}, Data: []float32{1}},
	}, nil
}

func TestPredictRowCountMismatch(t *testing.T) {
	predictor := newTestPredictor(&shortModel{}, PredictorOptions{})

	_, err := predictor.Predict(context.Background(), "YLQPRTFLL", []string{"CASSA", "CASSB"})
	assert.ErrorContains(t, err, "for a batch of 2")
}

func TestSplitBatches(t *testing.T) {
	assert.Nil(t, splitBatches(nil, 3))
	assert.Equal(t, [][]int{{1, 2, 3}}, splitBatches([]int{1, 2, 3}, 0))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, splitBatches([]int{1, 2, 3, 4, 5}, 2))
}

func TestGroupByCdr3bLengthNumericOrder(t *testing.T) {
	preds := []Prediction{
		{Pair: Pair{Epitope: "YLQPRTFLL", Cdr3b: "CASSLAPGATNEKLFF"}},
		{Pair: Pair{Epitope: "YLQPRTFLL", Cdr3b: "CASSL"}},
		{Pair: Pair{Epitope: "YLQPRTFLL", Cdr3b: "CASSLAPGA"}},
	}

	groups := GroupByCdr3bLength(preds)
	require.Len(t, groups, 3)
	assert.Equal(t, 5, groups[0].Cdr3bLen)
	assert.Equal(t, 9, groups[1].Cdr3bLen)
	assert.Equal(t, 16, groups[2].Cdr3bLen)
}
