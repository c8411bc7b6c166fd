package core

import (
	"context"
	"fmt"
	"time"
)

type ModelType string

const (
	Onnx   ModelType = "onnx"
	Remote ModelType = "remote"
)

// Tensor is a dense row-major float tensor.
type Tensor struct {
	Shape []int64   `json:"shape"`
	Data  []float32 `json:"data"`
}

func (t Tensor) numElements() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

func (t Tensor) validate(name string) error {
	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("%s tensor has negative dimension in shape %v", name, t.Shape)
		}
	}
	if n := t.numElements(); n != int64(len(t.Data)) {
		return fmt.Errorf("%s tensor shape %v implies %d values, got %d", name, t.Shape, n, len(t.Data))
	}
	return nil
}

type ModelOutput struct {
	// Logits has shape [batch, classes].
	Logits Tensor `json:"logits"`
	// Attentions has shape [layers, batch, heads, seq, seq]. A 4D
	// [batch, heads, seq, seq] tensor is treated as a single layer.
	Attentions Tensor `json:"attentions"`
}

type Model interface {
	Predict(ctx context.Context, batch *Batch) (*ModelOutput, error)

	Release()
}

type ModelLoader func(modelDir string) (Model, error)

func NewModelLoaders(remoteURL string, remoteTimeout time.Duration) map[ModelType]ModelLoader {
	return map[ModelType]ModelLoader{
		Onnx: func(modelDir string) (Model, error) {
			return LoadOnnxModel(modelDir)
		},
		Remote: func(_ string) (Model, error) {
			if remoteURL == "" {
				return nil, fmt.Errorf("remote model requires a model server url")
			}
			return NewRemoteModel(remoteURL, remoteTimeout), nil
		},
	}
}

// PredictLabels returns the arg max class per row. Single column logits are
// treated as a binary score with threshold 0.
func PredictLabels(logits Tensor) ([]int, error) {
	if err := logits.validate("logits"); err != nil {
		return nil, err
	}
	if len(logits.Shape) != 2 || logits.Shape[1] < 1 {
		return nil, fmt.Errorf("expected logits of shape [batch, classes], got %v", logits.Shape)
	}

	rows, cols := int(logits.Shape[0]), int(logits.Shape[1])
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		row := logits.Data[i*cols : (i+1)*cols]
		if cols == 1 {
			if row[0] > 0 {
				labels[i] = 1
			}
			continue
		}
		best := 0
		for j := 1; j < cols; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		labels[i] = best
	}
	return labels, nil
}
