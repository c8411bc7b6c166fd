//go:build !windows

package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ErrModelReleased = errors.New("model has been released")

var (
	onnxInputNames  = []string{"input_ids", "attention_mask"}
	onnxOutputNames = []string{"logits", "attentions"}
)

// OnnxModel runs an exported classifier graph. The onnxruntime environment
// must be initialized by the caller before loading. Release waits for
// running predictions to finish.
type OnnxModel struct {
	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
}

func LoadOnnxModel(modelDir string) (Model, error) {
	modelPath := filepath.Join(modelDir, "model.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx model not found: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, onnxInputNames, onnxOutputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session for %s: %w", modelPath, err)
	}

	return &OnnxModel{session: session}, nil
}

func (m *OnnxModel) Predict(ctx context.Context, batch *Batch) (*ModelOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, ErrModelReleased
	}

	shape := ort.NewShape(int64(batch.Size()), int64(batch.SeqLen))

	ids, err := ort.NewTensor(shape, batch.FlatInputIds())
	if err != nil {
		return nil, fmt.Errorf("error creating input_ids tensor: %w", err)
	}
	defer ids.Destroy()

	mask, err := ort.NewTensor(shape, batch.FlatAttentionMask())
	if err != nil {
		return nil, fmt.Errorf("error creating attention_mask tensor: %w", err)
	}
	defer mask.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := m.session.Run([]ort.Value{ids, mask}, outputs); err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	logits, err := copyTensor(outputs[0], "logits")
	if err != nil {
		return nil, err
	}
	attns, err := copyTensor(outputs[1], "attentions")
	if err != nil {
		return nil, err
	}

	return &ModelOutput{Logits: logits, Attentions: attns}, nil
}

// copyTensor moves output data into Go memory so the onnx value can be destroyed.
func copyTensor(v ort.Value, name string) (Tensor, error) {
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return Tensor{}, fmt.Errorf("output %s has unexpected type %T", name, v)
	}
	data := t.GetData()
	out := Tensor{
		Shape: append([]int64(nil), t.GetShape()...),
		Data:  make([]float32, len(data)),
	}
	copy(out.Data, data)
	return out, nil
}

func (m *OnnxModel) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}
