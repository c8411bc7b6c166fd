package core

import (
	"fmt"
	"strings"

	"tcrbert-backend/internal/config"

	"github.com/daulet/tokenizers"
)

// Tokenizer is satisfied by *tokenizers.Tokenizer.
type Tokenizer interface {
	Encode(text string, addSpecialTokens bool) ([]uint32, []string)
	Close() error
}

func LoadTokenizer(path string) (Tokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("error loading tokenizer from %s: %w", path, err)
	}
	return tk, nil
}

type Pair struct {
	Epitope string
	Cdr3b   string
}

func (p Pair) SentenceLen() int {
	return len(p.Epitope) + len(p.Cdr3b)
}

type Batch struct {
	Pairs         []Pair
	InputIds      [][]int64
	AttentionMask [][]int64
	SeqLen        int
}

func (b *Batch) Size() int {
	return len(b.Pairs)
}

func (b *Batch) FlatInputIds() []int64 {
	return flatten(b.InputIds, b.SeqLen)
}

func (b *Batch) FlatAttentionMask() []int64 {
	return flatten(b.AttentionMask, b.SeqLen)
}

func flatten(rows [][]int64, width int) []int64 {
	flat := make([]int64, 0, len(rows)*width)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	return flat
}

// SentenceEncoder turns (epitope, CDR3b) pairs into fixed width token windows.
// The sentence is the epitope residues followed directly by the CDR3b
// residues, one token per residue, so that position i+1 of the window (after
// the leading special token) is residue i of the sentence.
type SentenceEncoder struct {
	tokenizer Tokenizer
	cfg       config.EncoderConfig
}

func NewSentenceEncoder(tokenizer Tokenizer, cfg config.EncoderConfig) *SentenceEncoder {
	return &SentenceEncoder{tokenizer: tokenizer, cfg: cfg}
}

func residueSentence(seq string) string {
	var sb strings.Builder
	sb.Grow(2 * len(seq))
	for i := 0; i < len(seq); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(seq[i])
	}
	return sb.String()
}

func (e *SentenceEncoder) EncodeBatch(pairs []Pair) (*Batch, error) {
	maxLen := e.cfg.MaxLen
	batch := &Batch{
		Pairs:         pairs,
		InputIds:      make([][]int64, len(pairs)),
		AttentionMask: make([][]int64, len(pairs)),
		SeqLen:        maxLen,
	}

	for i, pair := range pairs {
		ids, _ := e.tokenizer.Encode(residueSentence(pair.Epitope+pair.Cdr3b), e.cfg.SpecialTokens())

		expected := pair.SentenceLen()
		if e.cfg.SpecialTokens() {
			expected += 2
		}
		if len(ids) != expected {
			return nil, fmt.Errorf("tokenizer produced %d tokens for %s/%s, expected one per residue (%d)", len(ids), pair.Epitope, pair.Cdr3b, expected)
		}
		if len(ids) > maxLen {
			return nil, fmt.Errorf("encoded sentence for %s/%s has %d tokens, exceeding max_len %d", pair.Epitope, pair.Cdr3b, len(ids), maxLen)
		}

		row := make([]int64, maxLen)
		mask := make([]int64, maxLen)
		for j := range row {
			if j < len(ids) {
				row[j] = int64(ids[j])
				mask[j] = 1
			} else {
				row[j] = e.cfg.PadTokenId
			}
		}

		batch.InputIds[i] = row
		batch.AttentionMask[i] = mask
	}

	return batch, nil
}
