package capability

import (
	"math"
	"testing"
)

func carFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame("car_df",
		[]string{"year", "selling_price", "fuel"},
		[][]string{
			{"2014", "450000", "Diesel"},
			{"2016", "550000", "Petrol"},
			{"2018", "700000", "Diesel"},
			{"2020", "900000", "Diesel"},
		})
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}
	return f
}

func TestNewFrameDetectsColumnTypes(t *testing.T) {
	t.Parallel()

	f := carFrame(t)
	if got := f.NumericColumns(); len(got) != 2 || got[0] != "year" || got[1] != "selling_price" {
		t.Fatalf("NumericColumns() = %v", got)
	}
	if got := f.CategoricalColumns(); len(got) != 1 || got[0] != "fuel" {
		t.Fatalf("CategoricalColumns() = %v", got)
	}
}

func TestNewFrameRejectsRaggedRows(t *testing.T) {
	t.Parallel()

	_, err := NewFrame("bad", []string{"a", "b"}, [][]string{{"1"}})
	if err == nil {
		t.Fatal("NewFrame() expected error for ragged row")
	}
}

func TestFrameStats(t *testing.T) {
	t.Parallel()

	f := carFrame(t)
	st, err := f.Stats("year")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Count != 4 {
		t.Fatalf("Stats() count = %d, want 4", st.Count)
	}
	if st.Mean != 2017 {
		t.Fatalf("Stats() mean = %v, want 2017", st.Mean)
	}
	if st.Min != 2014 || st.Max != 2020 {
		t.Fatalf("Stats() min/max = %v/%v", st.Min, st.Max)
	}
	if st.Median != 2017 {
		t.Fatalf("Stats() median = %v, want 2017", st.Median)
	}
}

func TestFrameStatsMissingCells(t *testing.T) {
	t.Parallel()

	f, err := NewFrame("gaps", []string{"v"}, [][]string{{"1"}, {""}, {"3"}})
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}
	st, err := f.Stats("v")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Count != 2 || st.Missing != 1 {
		t.Fatalf("Stats() count/missing = %d/%d, want 2/1", st.Count, st.Missing)
	}
}

func TestFrameCorrelation(t *testing.T) {
	t.Parallel()

	f := carFrame(t)
	cols, matrix := f.Correlation()
	if len(cols) != 2 {
		t.Fatalf("Correlation() columns = %v", cols)
	}
	if matrix[0][0] != 1 || matrix[1][1] != 1 {
		t.Fatalf("Correlation() diagonal = %v, %v", matrix[0][0], matrix[1][1])
	}
	// Price rises monotonically with year in the fixture.
	if r := matrix[0][1]; r < 0.95 || r > 1 {
		t.Fatalf("Correlation() year/price = %v, want near 1", r)
	}
	if matrix[0][1] != matrix[1][0] {
		t.Fatalf("Correlation() matrix not symmetric")
	}
}

func gappyFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame("gappy",
		[]string{"year", "km_driven", "fuel"},
		[][]string{
			{"2014", "145500", "Diesel"},
			{"2016", "", "Petrol"},
			{"2018", "45000", "Diesel"},
			{"2020", "15000", "Diesel"},
		})
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}
	return f
}

func TestPairsSkipsRowsWithMissingCells(t *testing.T) {
	t.Parallel()

	f := gappyFrame(t)
	xs, ys, err := f.Pairs("year", "km_driven")
	if err != nil {
		t.Fatalf("Pairs() error = %v", err)
	}
	if len(xs) != 3 || len(ys) != 3 {
		t.Fatalf("Pairs() lengths = %d/%d, want 3/3", len(xs), len(ys))
	}
	if xs[0] != 2014 || xs[1] != 2018 || xs[2] != 2020 {
		t.Fatalf("Pairs() xs = %v, row with the missing cell not skipped", xs)
	}
	if ys[1] != 45000 {
		t.Fatalf("Pairs() ys = %v", ys)
	}

	if _, _, err := f.Pairs("year", "fuel"); err == nil {
		t.Fatal("Pairs() expected error for a non-numeric column")
	}
}

func TestCorrelationPairwiseDeletion(t *testing.T) {
	t.Parallel()

	f := gappyFrame(t)
	cols, matrix := f.Correlation()
	if len(cols) != 2 {
		t.Fatalf("Correlation() columns = %v", cols)
	}
	// km_driven falls as year rises over the three shared rows; a missing
	// cell must not poison the pair with NaN.
	r := matrix[0][1]
	if math.IsNaN(r) {
		t.Fatal("Correlation() year/km_driven = NaN despite three shared rows")
	}
	if r >= 0 {
		t.Fatalf("Correlation() year/km_driven = %v, want negative", r)
	}
}

func TestPearsonDegenerate(t *testing.T) {
	t.Parallel()

	if r := pearson([]float64{1, 1, 1}, []float64{1, 2, 3}); !math.IsNaN(r) {
		t.Fatalf("pearson() on constant series = %v, want NaN", r)
	}
	if r := pearson([]float64{1, 2}, []float64{1}); !math.IsNaN(r) {
		t.Fatalf("pearson() on uneven series = %v, want NaN", r)
	}
}

func TestFrameValueCountsOrdering(t *testing.T) {
	t.Parallel()

	f := carFrame(t)
	counts, err := f.ValueCounts("fuel")
	if err != nil {
		t.Fatalf("ValueCounts() error = %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("ValueCounts() = %v", counts)
	}
	if counts[0].Value != "Diesel" || counts[0].Count != 3 {
		t.Fatalf("ValueCounts()[0] = %+v", counts[0])
	}
	if counts[1].Value != "Petrol" || counts[1].Count != 1 {
		t.Fatalf("ValueCounts()[1] = %+v", counts[1])
	}
}

func TestFramesStore(t *testing.T) {
	t.Parallel()

	frames := NewFrames()
	if err := frames.Put(carFrame(t)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := frames.Get("car_df"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := frames.Get("missing"); err == nil {
		t.Fatal("Get() expected error for unknown frame")
	}
}
