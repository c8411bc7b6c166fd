package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tcrbert-backend/internal/config"
	"tcrbert-backend/internal/core/utils"
)

type Prediction struct {
	Pair
	Label int
	// Attention holds one averaged weight per token position of the padded window.
	Attention []float32
}

type ResultGroup struct {
	Cdr3bLen    int
	Predictions []Prediction
	// PositiveAttention covers the epitope and CDR3b residues only; nil when
	// no prediction in the group is positive.
	PositiveAttention []float32
}

type PredictorOptions struct {
	// BatchSize of 0 sends all uncached pairs in a single batch.
	BatchSize  int
	MaxWorkers int
	Cache      *PredictionCache
}

type Predictor struct {
	cfg     *config.DataConfig
	encoder *SentenceEncoder
	model   Model
	opts    PredictorOptions
}

func NewPredictor(cfg *config.DataConfig, encoder *SentenceEncoder, model Model, opts PredictorOptions) *Predictor {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	return &Predictor{cfg: cfg, encoder: encoder, model: model, opts: opts}
}

func (p *Predictor) Config() *config.DataConfig {
	return p.cfg
}

// Predict scores every CDR3b against the epitope and groups the results by
// CDR3b length.
func (p *Predictor) Predict(ctx context.Context, epitope string, cdr3bs []string) ([]ResultGroup, error) {
	if err := ValidatePredictRequest(p.cfg, epitope, cdr3bs); err != nil {
		return nil, err
	}

	start := time.Now()

	preds := make([]Prediction, len(cdr3bs))
	var missing []int
	for i, cdr3b := range cdr3bs {
		pair := Pair{Epitope: epitope, Cdr3b: cdr3b}
		if cached, ok := p.opts.Cache.Get(pair); ok {
			preds[i] = cached
		} else {
			preds[i].Pair = pair
			missing = append(missing, i)
		}
	}

	batches := splitBatches(missing, p.opts.BatchSize)

	worker := func(ctx context.Context, idxs []int) ([]Prediction, error) {
		pairs := make([]Pair, len(idxs))
		for j, idx := range idxs {
			pairs[j] = preds[idx].Pair
		}
		return p.predictBatch(ctx, pairs)
	}

	completed := utils.RunInPool(ctx, worker, batches, p.opts.MaxWorkers)
	if err := utils.FirstError(completed); err != nil {
		return nil, err
	}

	for b, task := range completed {
		for j, pred := range task.Result {
			preds[batches[b][j]] = pred
			p.opts.Cache.Set(pred)
		}
	}

	slog.Info("predicted cdr3b sequences", "epitope", epitope, "n_cdr3bs", len(cdr3bs), "n_cached", len(cdr3bs)-len(missing), "n_batches", len(batches), "cache_hit_rate", p.opts.Cache.HitRate(), "duration", time.Since(start))

	return GroupByCdr3bLength(preds), nil
}

func (p *Predictor) predictBatch(ctx context.Context, pairs []Pair) ([]Prediction, error) {
	batch, err := p.encoder.EncodeBatch(pairs)
	if err != nil {
		return nil, fmt.Errorf("error encoding batch: %w", err)
	}

	out, err := p.model.Predict(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("error running model: %w", err)
	}

	labels, err := PredictLabels(out.Logits)
	if err != nil {
		return nil, err
	}

	attns, err := ReduceAttentions(out.Attentions)
	if err != nil {
		return nil, err
	}

	if len(labels) != len(pairs) || len(attns) != len(pairs) {
		return nil, fmt.Errorf("model returned %d labels and %d attention rows for a batch of %d", len(labels), len(attns), len(pairs))
	}

	preds := make([]Prediction, len(pairs))
	for i, pair := range pairs {
		preds[i] = Prediction{Pair: pair, Label: labels[i], Attention: attns[i]}
	}
	return preds, nil
}

func splitBatches(idxs []int, size int) [][]int {
	if len(idxs) == 0 {
		return nil
	}
	if size <= 0 || size >= len(idxs) {
		return [][]int{idxs}
	}

	batches := make([][]int, 0, (len(idxs)+size-1)/size)
	for start := 0; start < len(idxs); start += size {
		batches = append(batches, idxs[start:min(start+size, len(idxs))])
	}
	return batches
}

// GroupByCdr3bLength groups predictions by CDR3b length in ascending order,
// preserving input order inside each group.
func GroupByCdr3bLength(preds []Prediction) []ResultGroup {
	byLen := make(map[int][]Prediction)
	for _, pred := range preds {
		n := len(pred.Cdr3b)
		byLen[n] = append(byLen[n], pred)
	}

	lens := make([]int, 0, len(byLen))
	for n := range byLen {
		lens = append(lens, n)
	}
	sort.Ints(lens)

	groups := make([]ResultGroup, 0, len(lens))
	for _, n := range lens {
		group := byLen[n]
		sentenceLen := len(group[len(group)-1].Epitope) + n
		groups = append(groups, ResultGroup{
			Cdr3bLen:          n,
			Predictions:       group,
			PositiveAttention: MeanPositiveAttention(group, sentenceLen),
		})
	}
	return groups
}
