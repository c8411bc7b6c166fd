package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var ErrInvalidChartInput = errors.New("invalid chart input")

var (
	EpitopeColor color.Color = color.RGBA{G: 128, A: 255}
	Cdr3bColor   color.Color = color.Black
	MarkColor    color.Color = color.RGBA{R: 139, A: 255}
	BarColor     color.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

const (
	DefaultMarkRatio = 0.1
	markSuffix       = "\n•"
)

type Options struct {
	Width     vg.Length
	Height    vg.Length
	FontSize  vg.Length
	MarkRatio float64
}

func DefaultOptions() Options {
	return Options{
		Width:     6 * vg.Inch,
		Height:    2.5 * vg.Inch,
		FontSize:  vg.Points(8),
		MarkRatio: DefaultMarkRatio,
	}
}

type TickLabel struct {
	Text  string
	Color color.Color
}

// MarkTopPositions returns, in ascending order, the positions holding the
// highest attention within each segment: the epitope residues first, then the
// CDR3b residues. A segment of n residues marks every rank below n*ratio.
func MarkTopPositions(attns []float64, epitopeLen, cdr3bLen int, ratio float64) []int {
	var marked []int
	marked = append(marked, topRanks(attns[:epitopeLen], 0, ratio)...)
	marked = append(marked, topRanks(attns[epitopeLen:epitopeLen+cdr3bLen], epitopeLen, ratio)...)
	sort.Ints(marked)
	return marked
}

// topRanks orders positions by descending weight; ties go to the later position.
func topRanks(segment []float64, offset int, ratio float64) []int {
	order := make([]int, len(segment))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return segment[order[a]] < segment[order[b]] })

	limit := float64(len(segment)) * ratio
	var top []int
	for rank := 0; rank < len(order) && float64(rank) < limit; rank++ {
		top = append(top, offset+order[len(order)-1-rank])
	}
	return top
}

func TickLabels(epitope string, cdr3bLen int, marked []int) []TickLabel {
	labels := make([]TickLabel, 0, len(epitope)+cdr3bLen)
	for i := 0; i < len(epitope); i++ {
		labels = append(labels, TickLabel{Text: string(epitope[i]), Color: EpitopeColor})
	}
	for i := 1; i <= cdr3bLen; i++ {
		labels = append(labels, TickLabel{Text: strconv.Itoa(i), Color: Cdr3bColor})
	}
	for _, pos := range marked {
		labels[pos].Text += markSuffix
		labels[pos].Color = MarkColor
	}
	return labels
}

func validate(epitope string, cdr3bLen int, attns []float64) error {
	if len(epitope) == 0 {
		return fmt.Errorf("%w: epitope is required", ErrInvalidChartInput)
	}
	for i := 0; i < len(epitope); i++ {
		if c := epitope[i]; c < 'A' || c > 'Z' {
			return fmt.Errorf("%w: epitope %q must contain only uppercase residue letters", ErrInvalidChartInput, epitope)
		}
	}
	if cdr3bLen < 1 {
		return fmt.Errorf("%w: cdr3b_len must be positive, got %d", ErrInvalidChartInput, cdr3bLen)
	}
	if expected := len(epitope) + cdr3bLen; len(attns) != expected {
		return fmt.Errorf("%w: expected %d attention weights for epitope %s and cdr3b_len %d, got %d", ErrInvalidChartInput, expected, epitope, cdr3bLen, len(attns))
	}
	for i, v := range attns {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: attention weight %d is not finite", ErrInvalidChartInput, i)
		}
	}
	return nil
}

// RenderAttentionChart draws one bar per residue position and returns the PNG bytes.
func RenderAttentionChart(epitope string, cdr3bLen int, attns []float64, opts Options) ([]byte, error) {
	if err := validate(epitope, cdr3bLen, attns); err != nil {
		return nil, err
	}

	labels := TickLabels(epitope, cdr3bLen, MarkTopPositions(attns, len(epitope), cdr3bLen, opts.MarkRatio))

	p := plot.New()
	p.X.Tick.Label.Font.Size = opts.FontSize
	p.Y.Tick.Label.Font.Size = opts.FontSize
	p.Y.Min = 0

	barWidth := opts.Width * 0.8 / vg.Length(len(attns)) * 0.5
	bars, err := plotter.NewBarChart(plotter.Values(attns), barWidth)
	if err != nil {
		return nil, fmt.Errorf("error creating bar chart: %w", err)
	}
	bars.Color = BarColor
	bars.LineStyle.Width = 0
	p.Add(bars)

	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Text
	}
	// The axis lays out the tick labels invisibly; coloredTicks paints them.
	p.NominalX(names...)
	style := p.X.Tick.Label
	p.X.Tick.Label.Color = color.Transparent
	p.Add(&coloredTicks{labels: labels, style: style, offset: p.X.Padding})

	w, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return nil, fmt.Errorf("error creating png writer: %w", err)
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("error rendering chart: %w", err)
	}
	return buf.Bytes(), nil
}

type coloredTicks struct {
	labels []TickLabel
	style  text.Style
	offset vg.Length
}

func (t *coloredTicks) Plot(c draw.Canvas, p *plot.Plot) {
	trX, _ := p.Transforms(&c)
	for i, l := range t.labels {
		sty := t.style
		sty.Color = l.Color
		sty.XAlign = draw.XCenter
		sty.YAlign = draw.YTop
		c.FillText(sty, vg.Point{X: trX(float64(i)), Y: c.Min.Y - t.offset}, l.Text)
	}
}
