package capability

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

const (
	CapFrameFromCSV           = "frame.from_csv"
	CapFrameInfo              = "frame.info"
	CapFrameColumnStatistics  = "frame.column_statistics"
	CapFrameCorrelationMatrix = "frame.correlation_matrix"
	CapFrameValueCounts       = "frame.value_counts"
)

// Frame is an immutable named table. A frame is replaced wholesale under
// its handle name, never mutated in place.
type Frame struct {
	Name    string
	Columns []string

	rows    [][]string
	numeric map[string][]float64
}

// Frames is the process-wide store of named frame handles. Access is
// sequential (one phase, one capability call at a time), so no locking.
type Frames struct {
	frames map[string]*Frame
}

func NewFrames() *Frames {
	return &Frames{frames: make(map[string]*Frame, 4)}
}

func (s *Frames) Put(f *Frame) error {
	if f == nil || strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("frame name is empty")
	}
	s.frames[f.Name] = f
	return nil
}

func (s *Frames) Get(name string) (*Frame, error) {
	f, ok := s.frames[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q", name)
	}
	return f, nil
}

// NewFrame builds a frame from a header row and data rows, detecting which
// columns parse as numeric. Blank cells count as missing, not as text.
func NewFrame(name string, columns []string, rows [][]string) (*Frame, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("frame %q has no columns", name)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("frame %q row %d has %d cells, want %d", name, i, len(row), len(columns))
		}
	}

	f := &Frame{
		Name:    name,
		Columns: append([]string(nil), columns...),
		rows:    rows,
		numeric: make(map[string][]float64),
	}

	for idx, col := range f.Columns {
		values := make([]float64, 0, len(rows))
		numericCol := true
		for _, row := range rows {
			cell := strings.TrimSpace(row[idx])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				numericCol = false
				break
			}
			values = append(values, v)
		}
		if numericCol && len(values) > 0 {
			f.numeric[col] = values
		}
	}
	return f, nil
}

func (f *Frame) NumRows() int { return len(f.rows) }
func (f *Frame) NumCols() int { return len(f.Columns) }

func (f *Frame) IsNumeric(col string) bool {
	_, ok := f.numeric[col]
	return ok
}

// NumericColumns returns numeric column names in declaration order.
func (f *Frame) NumericColumns() []string {
	out := make([]string, 0, len(f.numeric))
	for _, col := range f.Columns {
		if f.IsNumeric(col) {
			out = append(out, col)
		}
	}
	return out
}

// CategoricalColumns returns non-numeric column names in declaration order.
func (f *Frame) CategoricalColumns() []string {
	out := make([]string, 0, len(f.Columns))
	for _, col := range f.Columns {
		if !f.IsNumeric(col) {
			out = append(out, col)
		}
	}
	return out
}

func (f *Frame) columnIndex(col string) (int, error) {
	for i, c := range f.Columns {
		if c == col {
			return i, nil
		}
	}
	return 0, fmt.Errorf("frame %q has no column %q", f.Name, col)
}

// Values returns the raw cells of a column.
func (f *Frame) Values(col string) ([]string, error) {
	idx, err := f.columnIndex(col)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row[idx])
	}
	return out, nil
}

// Numbers returns the parsed values of a numeric column, missing cells
// excluded.
func (f *Frame) Numbers(col string) ([]float64, error) {
	values, ok := f.numeric[col]
	if !ok {
		return nil, fmt.Errorf("column %q of frame %q is not numeric", col, f.Name)
	}
	return values, nil
}

// Pairs returns the row-aligned values of two numeric columns, skipping
// any row where either cell is missing.
func (f *Frame) Pairs(xcol, ycol string) ([]float64, []float64, error) {
	for _, col := range []string{xcol, ycol} {
		if !f.IsNumeric(col) {
			return nil, nil, fmt.Errorf("column %q of frame %q is not numeric", col, f.Name)
		}
	}
	xi, err := f.columnIndex(xcol)
	if err != nil {
		return nil, nil, err
	}
	yi, err := f.columnIndex(ycol)
	if err != nil {
		return nil, nil, err
	}

	xs := make([]float64, 0, len(f.rows))
	ys := make([]float64, 0, len(f.rows))
	for _, row := range f.rows {
		xc, yc := strings.TrimSpace(row[xi]), strings.TrimSpace(row[yi])
		if xc == "" || yc == "" {
			continue
		}
		x, err := strconv.ParseFloat(xc, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("column %q of frame %q: %w", xcol, f.Name, err)
		}
		y, err := strconv.ParseFloat(yc, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("column %q of frame %q: %w", ycol, f.Name, err)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys, nil
}

// ColumnStats are descriptive statistics for one numeric column.
type ColumnStats struct {
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
}

// Stats computes descriptive statistics for a numeric column.
func (f *Frame) Stats(col string) (ColumnStats, error) {
	values, err := f.Numbers(col)
	if err != nil {
		return ColumnStats{}, err
	}

	st := ColumnStats{
		Count:   len(values),
		Missing: len(f.rows) - len(values),
		Min:     values[0],
		Max:     values[0],
	}
	sum := 0.0
	for _, v := range values {
		sum += v
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
	}
	st.Mean = sum / float64(len(values))

	if len(values) > 1 {
		ss := 0.0
		for _, v := range values {
			d := v - st.Mean
			ss += d * d
		}
		st.Std = math.Sqrt(ss / float64(len(values)-1))
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		st.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		st.Median = sorted[mid]
	}
	return st, nil
}

// Correlation computes the Pearson correlation matrix over numeric columns
// with pairwise deletion: a row contributes to a pair only when both cells
// are present. Pairs with under two shared observations or zero variance
// correlate as NaN.
func (f *Frame) Correlation() ([]string, [][]float64) {
	cols := f.NumericColumns()
	matrix := make([][]float64, len(cols))
	for i := range cols {
		matrix[i] = make([]float64, len(cols))
		for j := range cols {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			xs, ys, err := f.Pairs(cols[i], cols[j])
			if err != nil {
				matrix[i][j] = math.NaN()
				continue
			}
			matrix[i][j] = pearson(xs, ys)
		}
	}
	return cols, matrix
}

func pearson(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return math.NaN()
	}
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}

// ValueCount is one category with its occurrence count.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts tallies a column's values, most frequent first, ties broken
// by value for determinism.
func (f *Frame) ValueCounts(col string) ([]ValueCount, error) {
	values, err := f.Values(col)
	if err != nil {
		return nil, err
	}
	tally := make(map[string]int, 16)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		tally[v]++
	}
	out := make([]ValueCount, 0, len(tally))
	for v, n := range tally {
		out = append(out, ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

/* --------------------------- frame capabilities -------------------------- */

func registerFrame(c *Catalog, deps Deps) error {
	frames := deps.Frames

	if err := c.add(Info{
		Name:       CapFrameFromCSV,
		Desc:       "Parse a CSV file into a named in-memory frame handle.",
		SideEffect: contractx.SideEffectPure,
		Params: map[string]Param{
			"csv_path": {Type: "string", Desc: "Path to the CSV file", Required: true},
			"frame":    {Type: "string", Desc: "Handle name for the frame", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		name := stringArg(args, "frame")
		frame, err := readCSVFrame(deps.DataDir, stringArg(args, "csv_path"), name)
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		if err := frames.Put(frame); err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		return contractx.CapabilityResult{
			Output: map[string]any{
				"frame":   name,
				"rows":    frame.NumRows(),
				"columns": frame.Columns,
			},
			Artifacts: []contractx.Artifact{{
				Name:     name,
				Kind:     contractx.KindDataframe,
				Location: "mem://" + name,
			}},
		}, nil
	}); err != nil {
		return err
	}

	if err := c.add(Info{
		Name:       CapFrameInfo,
		Desc:       "Row count, column names, and column types of a frame.",
		SideEffect: contractx.SideEffectPure,
		Params: map[string]Param{
			"frame": {Type: "string", Desc: "Frame handle name", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		frame, err := frames.Get(stringArg(args, "frame"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		types := make(map[string]string, len(frame.Columns))
		for _, col := range frame.Columns {
			if frame.IsNumeric(col) {
				types[col] = "numeric"
			} else {
				types[col] = "categorical"
			}
		}
		return contractx.CapabilityResult{
			Output: map[string]any{
				"frame":   frame.Name,
				"rows":    frame.NumRows(),
				"columns": frame.Columns,
				"types":   types,
			},
		}, nil
	}); err != nil {
		return err
	}

	if err := c.add(Info{
		Name:       CapFrameColumnStatistics,
		Desc:       "Descriptive statistics for every numeric column of a frame.",
		SideEffect: contractx.SideEffectPure,
		Params: map[string]Param{
			"frame": {Type: "string", Desc: "Frame handle name", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		frame, err := frames.Get(stringArg(args, "frame"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		stats := make(map[string]ColumnStats, len(frame.Columns))
		for _, col := range frame.NumericColumns() {
			st, err := frame.Stats(col)
			if err != nil {
				return contractx.CapabilityResult{Error: err.Error()}, nil
			}
			stats[col] = st
		}
		return contractx.CapabilityResult{
			Output: map[string]any{
				"frame":      frame.Name,
				"statistics": stats,
			},
		}, nil
	}); err != nil {
		return err
	}

	if err := c.add(Info{
		Name:       CapFrameCorrelationMatrix,
		Desc:       "Pearson correlation matrix over numeric columns.",
		SideEffect: contractx.SideEffectPure,
		Params: map[string]Param{
			"frame": {Type: "string", Desc: "Frame handle name", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		frame, err := frames.Get(stringArg(args, "frame"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		cols, matrix := frame.Correlation()
		return contractx.CapabilityResult{
			Output: map[string]any{
				"frame":   frame.Name,
				"columns": cols,
				"matrix":  matrix,
			},
		}, nil
	}); err != nil {
		return err
	}

	return c.add(Info{
		Name:       CapFrameValueCounts,
		Desc:       "Occurrence counts for the values of one column.",
		SideEffect: contractx.SideEffectPure,
		Params: map[string]Param{
			"frame":  {Type: "string", Desc: "Frame handle name", Required: true},
			"column": {Type: "string", Desc: "Column to tally", Required: true},
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
		return contractx.CapabilityResult{
			Output: map[string]any{
				"frame":  frame.Name,
				"column": stringArg(args, "column"),
				"counts": counts,
			},
		}, nil
	})
}
