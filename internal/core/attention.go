package core

import "fmt"

// ReduceAttentions averages attention weights over layers, heads and query
// positions, leaving one weight per key position for each example.
func ReduceAttentions(attns Tensor) ([][]float32, error) {
	if err := attns.validate("attentions"); err != nil {
		return nil, err
	}

	shape := attns.Shape
	if len(shape) == 4 {
		shape = append([]int64{1}, shape...)
	}
	if len(shape) != 5 {
		return nil, fmt.Errorf("expected attentions of shape [layers, batch, heads, seq, seq], got %v", attns.Shape)
	}

	layers, batch, heads, queries, keys := int(shape[0]), int(shape[1]), int(shape[2]), int(shape[3]), int(shape[4])
	if layers*heads*queries == 0 {
		return nil, fmt.Errorf("cannot average attentions with empty shape %v", attns.Shape)
	}

	sums := make([][]float64, batch)
	for b := range sums {
		sums[b] = make([]float64, keys)
	}

	idx := 0
	for l := 0; l < layers; l++ {
		for b := 0; b < batch; b++ {
			sum := sums[b]
			for h := 0; h < heads; h++ {
				for q := 0; q < queries; q++ {
					for k := 0; k < keys; k++ {
						sum[k] += float64(attns.Data[idx])
						idx++
					}
				}
			}
		}
	}

	denom := float64(layers * heads * queries)
	out := make([][]float32, batch)
	for b, sum := range sums {
		out[b] = make([]float32, keys)
		for k, v := range sum {
			out[b][k] = float32(v / denom)
		}
	}
	return out, nil
}

// MeanPositiveAttention averages the attention vectors of positive
// predictions and keeps the positions covering the sentence, skipping the
// leading special token. It returns nil if no prediction is positive.
func MeanPositiveAttention(preds []Prediction, sentenceLen int) []float32 {
	var (
		sum []float64
		n   int
	)
	for _, p := range preds {
		if p.Label != 1 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(p.Attention))
		}
		for i := 0; i < len(sum) && i < len(p.Attention); i++ {
			sum[i] += float64(p.Attention[i])
		}
		n++
	}
	if n == 0 {
		return nil
	}

	start, end := 1, sentenceLen+1
	if end > len(sum) {
		end = len(sum)
	}
	if start > end {
		return []float32{}
	}

	mean := make([]float32, 0, end-start)
	for _, v := range sum[start:end] {
		mean = append(mean, float32(v/float64(n)))
	}
	return mean
}
