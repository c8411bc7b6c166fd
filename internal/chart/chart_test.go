package chart

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkTopPositions(t *testing.T) {
	// 9 epitope residues mark 1 position (rank < 0.9), 11 cdr3b residues mark 2 (rank < 1.1).
	attns := []float64{
		0.1, 0.2, 0.9, 0.1, 0.1, 0.1, 0.3, 0.1, 0.1,
		0.2, 0.2, 0.5, 0.1, 0.1, 0.7, 0.1, 0.1, 0.1, 0.1, 0.1,
	}
	assert.Equal(t, []int{2, 11, 14}, MarkTopPositions(attns, 9, 11, DefaultMarkRatio))

	assert.Empty(t, MarkTopPositions(attns, 9, 11, 0))
	assert.Len(t, MarkTopPositions(attns, 9, 11, 1), 20)
}

func TestMarkTopPositionsTies(t *testing.T) {
	attns := []float64{0.5, 0.5, 0.5, 0.1, 0.1}
	assert.Equal(t, []int{2, 4}, MarkTopPositions(attns, 3, 2, 0.3))
}

func TestTickLabels(t *testing.T) {
	labels := TickLabels("YLQ", 3, []int{1, 4})
	require.Len(t, labels, 6)

	assert.Equal(t, TickLabel{Text: "Y", Color: EpitopeColor}, labels[0])
	assert.Equal(t, TickLabel{Text: "L\n•", Color: MarkColor}, labels[1])
	assert.Equal(t, TickLabel{Text: "1", Color: Cdr3bColor}, labels[3])
	assert.Equal(t, TickLabel{Text: "2\n•", Color: MarkColor}, labels[4])
	assert.Equal(t, "3", labels[5].Text)
}

func TestRenderAttentionChart(t *testing.T) {
	epitope := "YLQPRTFLL"
	attns := make([]float64, len(epitope)+11)
	for i := range attns {
		attns[i] = float64(i%7) / 10
	}

	data, err := RenderAttentionChart(epitope, 11, attns, DefaultOptions())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	// 6in x 2.5in at the default 96 dpi.
	assert.Equal(t, 576, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())
}

func TestRenderAttentionChartInvalid(t *testing.T) {
	cases := map[string]struct {
		epitope  string
		cdr3bLen int
		attns    []float64
	}{
		"length mismatch": {"YLQ", 2, []float64{0.1, 0.2, 0.3, 0.4}},
		"zero cdr3b len":  {"YLQ", 0, []float64{0.1, 0.2, 0.3}},
		"empty epitope":   {"", 2, []float64{0.1, 0.2}},
		"nan weight":      {"YLQ", 1, []float64{0.1, math.NaN(), 0.3, 0.4}},
		"non ascii":       {"YLQé", 2, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}},
		"lowercase":       {"ylq", 1, []float64{0.1, 0.2, 0.3, 0.4}},
		"digit":           {"YL1", 1, []float64{0.1, 0.2, 0.3, 0.4}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := RenderAttentionChart(tc.epitope, tc.cdr3bLen, tc.attns, DefaultOptions())
			assert.ErrorIs(t, err, ErrInvalidChartInput)
		})
	}
}
