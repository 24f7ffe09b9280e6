package capability

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

const (
	CapChartHistogram = "chart.histogram"
	CapChartBar       = "chart.bar"
	CapChartScatter   = "chart.scatter"
	CapChartBox       = "chart.box"
)

const (
	chartWidth  = 640
	chartHeight = 400
	chartMargin = 48
	maxBarCats  = 12
)

func registerChart(c *Catalog, deps Deps) error {
	frames := deps.Frames

	if err := c.add(Info{
		Name:       CapChartHistogram,
		Desc:       "Render a histogram of a numeric column to an SVG file.",
		SideEffect: contractx.SideEffectWrite,
		Params: map[string]Param{
			"frame":       {Type: "string", Desc: "Frame handle name", Required: true},
			"column":      {Type: "string", Desc: "Numeric column", Required: true},
			"output_path": {Type: "string", Desc: "Output path under the plots dir", Required: true},
			"title":       {Type: "string", Desc: "Chart title"},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		frame, err := frames.Get(stringArg(args, "frame"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		values, err := frame.Numbers(stringArg(args, "column"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		svg := renderHistogram(values, chartTitle(args, "Histogram"))
		return writeChart(deps.PlotsDir, stringArg(args, "output_path"), svg)
	}); err != nil {
		return err
	}

	if err := c.add(Info{
		Name:       CapChartBar,
		Desc:       "Render a bar chart of a column's value counts to an SVG file.",
		SideEffect: contractx.SideEffectWrite,
		Params: map[string]Param{
			"frame":       {Type: "string", Desc: "Frame handle name", Required: true},
			"column":      {Type: "string", Desc: "Column to tally", Required: true},
			"output_path": {Type: "string", Desc: "Output path under the plots dir", Required: true},
			"title":       {Type: "string", Desc: "Chart title"},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		frame, err := frames.Get(stringArg(args, "frame"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		counts, err := frame.ValueCounts(stringArg(args, "column"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		if len(counts) > maxBarCats {
			counts = counts[:maxBarCats]
		}
		svg := renderBar(counts, chartTitle(args, "Value counts"))
		return writeChart(deps.PlotsDir, stringArg(args, "output_path"), svg)
	}); err != nil {
		return err
	}

	if err := c.add(Info{
		Name:       CapChartScatter,
		Desc:       "Render a scatter plot of two numeric columns to an SVG file.",
		SideEffect: contractx.SideEffectWrite,
		Params: map[string]Param{
			"frame":       {Type: "string", Desc: "Frame handle name", Required: true},
			"x":           {Type: "string", Desc: "Numeric column for the x axis", Required: true},
			"y":           {Type: "string", Desc: "Numeric column for the y axis", Required: true},
			"output_path": {Type: "string", Desc: "Output path under the plots dir", Required: true},
			"title":       {Type: "string", Desc: "Chart title"},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		frame, err := frames.Get(stringArg(args, "frame"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		// Pairwise deletion: a row is plotted only when both cells are
		// present.
		xs, ys, err := frame.Pairs(stringArg(args, "x"), stringArg(args, "y"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		if len(xs) == 0 {
			return contractx.CapabilityResult{Error: "x and y share no observed rows"}, nil
		}
		svg := renderScatter(xs, ys, chartTitle(args, "Scatter"))
		return writeChart(deps.PlotsDir, stringArg(args, "output_path"), svg)
	}); err != nil {
		return err
	}

	return c.add(Info{
		Name:       CapChartBox,
		Desc:       "Render a box plot of a numeric column to an SVG file.",
		SideEffect: contractx.SideEffectWrite,
		Params: map[string]Param{
			"frame":       {Type: "string", Desc: "Frame handle name", Required: true},
			"column":      {Type: "string", Desc: "Numeric column", Required: true},
			"output_path": {Type: "string", Desc: "Output path under the plots dir", Required: true},
			"title":       {Type: "string", Desc: "Chart title"},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		frame, err := frames.Get(stringArg(args, "frame"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		values, err := frame.Numbers(stringArg(args, "column"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		svg := renderBox(values, chartTitle(args, "Box plot"))
		return writeChart(deps.PlotsDir, stringArg(args, "output_path"), svg)
	})
}

func chartTitle(args map[string]any, fallback string) string {
	if t := stringArg(args, "title"); t != "" {
		return t
	}
	return fallback
}

// writeChart confines the output path to the plots dir and registers the
// written file as an image artifact named after its base filename.
func writeChart(plotsDir, outputPath, svg string) (contractx.CapabilityResult, error) {
	path, err := confinePath(plotsDir, outputPath)
	if err != nil {
		return contractx.CapabilityResult{Error: err.Error()}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return contractx.CapabilityResult{}, err
	}
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		return contractx.CapabilityResult{}, err
	}

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return contractx.CapabilityResult{
		Output: map[string]any{"path": path},
		Artifacts: []contractx.Artifact{{
			Name:     name,
			Kind:     contractx.KindImage,
			Location: path,
		}},
	}, nil
}

/* ------------------------------ SVG rendering ----------------------------- */

func svgHeader(title string) *strings.Builder {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		chartWidth, chartHeight, chartWidth, chartHeight)
	b.WriteString(`<rect width="100%" height="100%" fill="white"/>`)
	fmt.Fprintf(&b, `<text x="%d" y="24" font-family="sans-serif" font-size="16" text-anchor="middle">%s</text>`,
		chartWidth/2, escapeXML(title))
	// axes
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"/>`,
		chartMargin, chartHeight-chartMargin, chartWidth-chartMargin, chartHeight-chartMargin)
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"/>`,
		chartMargin, chartMargin, chartMargin, chartHeight-chartMargin)
	return &b
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

func plotArea() (x0, y0, w, h float64) {
	return chartMargin, chartMargin, chartWidth - 2*chartMargin, chartHeight - 2*chartMargin
}

func renderHistogram(values []float64, title string) string {
	bins := int(math.Ceil(math.Sqrt(float64(len(values)))))
	if bins < 1 {
		bins = 1
	}
	if bins > 20 {
		bins = 20
	}
	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	span := maxV - minV
	if span == 0 {
		span = 1
	}
	counts := make([]int, bins)
	for _, v := range values {
		idx := int(float64(bins) * (v - minV) / span)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	peak := 0
	for _, n := range counts {
		if n > peak {
			peak = n
		}
	}

	b := svgHeader(title)
	x0, y0, w, h := plotArea()
	barW := w / float64(bins)
	for i, n := range counts {
		barH := h * float64(n) / float64(peak)
		fmt.Fprintf(b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="steelblue" stroke="white"/>`,
			x0+float64(i)*barW, y0+h-barH, barW, barH)
	}
	b.WriteString("</svg>")
	return b.String()
}

func renderBar(counts []ValueCount, title string) string {
	peak := 0
	for _, c := range counts {
		if c.Count > peak {
			peak = c.Count
		}
	}
	if peak == 0 {
		peak = 1
	}

	b := svgHeader(title)
	x0, y0, w, h := plotArea()
	barW := w / float64(len(counts))
	for i, c := range counts {
		barH := h * float64(c.Count) / float64(peak)
		fmt.Fprintf(b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="darkseagreen" stroke="white"/>`,
			x0+float64(i)*barW+barW*0.1, y0+h-barH, barW*0.8, barH)
		fmt.Fprintf(b, `<text x="%.1f" y="%.1f" font-family="sans-serif" font-size="10" text-anchor="middle">%s</text>`,
			x0+float64(i)*barW+barW/2, y0+h+14, escapeXML(c.Value))
	}
	b.WriteString("</svg>")
	return b.String()
}

func renderScatter(xs, ys []float64, title string) string {
	minX, maxX := minMax(xs)
	minY, maxY := minMax(ys)
	spanX, spanY := maxX-minX, maxY-minY
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}

	b := svgHeader(title)
	x0, y0, w, h := plotArea()
	for i := range xs {
		cx := x0 + w*(xs[i]-minX)/spanX
		cy := y0 + h - h*(ys[i]-minY)/spanY
		fmt.Fprintf(b, `<circle cx="%.1f" cy="%.1f" r="2.5" fill="indianred" fill-opacity="0.6"/>`, cx, cy)
	}
	b.WriteString("</svg>")
	return b.String()
}

func renderBox(values []float64, title string) string {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := quantile(sorted, 0.25)
	q2 := quantile(sorted, 0.5)
	q3 := quantile(sorted, 0.75)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	span := hi - lo
	if span == 0 {
		span = 1
	}

	b := svgHeader(title)
	x0, y0, w, h := plotArea()
	scale := func(v float64) float64 { return y0 + h - h*(v-lo)/span }
	mid := x0 + w/2
	boxW := w / 4
	// whiskers
	fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="black"/>`, mid, scale(lo), mid, scale(q1))
	fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="black"/>`, mid, scale(q3), mid, scale(hi))
	// box
	fmt.Fprintf(b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="khaki" stroke="black"/>`,
		mid-boxW/2, scale(q3), boxW, scale(q1)-scale(q3))
	// median
	fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="black" stroke-width="2"/>`,
		mid-boxW/2, scale(q2), mid+boxW/2, scale(q2))
	b.WriteString("</svg>")
	return b.String()
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
