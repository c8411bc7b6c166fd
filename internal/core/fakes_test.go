package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tcrbert-backend/internal/config"
)

const (
	clsTokenId = 2
	sepTokenId = 3
)

// residueTokenizer maps each space separated residue to a stable id.
type residueTokenizer struct{}

func (residueTokenizer) Encode(text string, addSpecialTokens bool) ([]uint32, []string) {
	var ids []uint32
	var tokens []string
	if addSpecialTokens {
		ids = append(ids, clsTokenId)
		tokens = append(tokens, "[CLS]")
	}
	for _, tok := range strings.Fields(text) {
		ids = append(ids, uint32(5+strings.Index(AminoAcids, tok)))
		tokens = append(tokens, tok)
	}
	if addSpecialTokens {
		ids = append(ids, sepTokenId)
		tokens = append(tokens, "[SEP]")
	}
	return ids, tokens
}

func (residueTokenizer) Close() error { return nil }

// cassModel labels a pair positive when the CDR3b starts with CASS. Every
// example attends with weight k+1 to key position k, averaged over two layers.
type cassModel struct {
	mu      sync.Mutex
	calls   int
	batches [][]Pair
	err     error
}

func (m *cassModel) Predict(ctx context.Context, batch *Batch) (*ModelOutput, error) {
	m.mu.Lock()
	m.calls++
	m.batches = append(m.batches, batch.Pairs)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	B, L := int64(batch.Size()), int64(batch.SeqLen)

	logits := make([]float32, 0, 2*B)
	for _, pair := range batch.Pairs {
		if strings.HasPrefix(pair.Cdr3b, "CASS") {
			logits = append(logits, -1, 1)
		} else {
			logits = append(logits, 1, -1)
		}
	}

	const layers = 2
	attns := make([]float32, 0, layers*B*L*L)
	for l := 0; l < layers; l++ {
		for b := int64(0); b < B; b++ {
			for q := int64(0); q < L; q++ {
				for k := int64(0); k < L; k++ {
					attns = append(attns, float32(k)+float32(2*l))
				}
			}
		}
	}

	return &ModelOutput{
		Logits:     Tensor{Shape: []int64{B, 2}, Data: logits},
		Attentions: Tensor{Shape: []int64{layers, B, 1, L, L}, Data: attns},
	}, nil
}

func (m *cassModel) Release() {}

func (m *cassModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testDataConfig() *config.DataConfig {
	cfg, err := config.ParseDataConfig([]byte(`{
  "sars2_cdr3b": ["CASSPDIEQFF"],
  "sars2_epitope": ["YLQPRTFLL"],
  "max_cdr3b": 20,
  "max_n_cdr3bs": 5,
  "epitope_range": [8, 15],
  "encoder": {"max_len": 40}
}`))
	if err != nil {
		panic(fmt.Sprintf("invalid test data config: %v", err))
	}
	return cfg
}
