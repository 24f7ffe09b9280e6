package member

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	capabilityx "github.com/sorawit/datacrew/agent/capability"
	contractx "github.com/sorawit/datacrew/agent/contract"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func safeName(s string) string {
	s = unsafePathChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "column"
	}
	return s
}

func staticArgs(args map[string]any) func([]contractx.CapabilityResult) (map[string]any, error) {
	return func([]contractx.CapabilityResult) (map[string]any, error) {
		return args, nil
	}
}

func frameParam(task contractx.Task) string {
	if f := task.Param("frame"); f != "" {
		return f
	}
	return "main_df"
}

// DiscoveryPlaybook scans the data directory and selects the primary
// dataset for downstream phases.
func DiscoveryPlaybook() Playbook {
	return func(task contractx.Task) ([]Step, error) {
		sel := task.Param("select")
		if sel == "" {
			sel = "dataset"
		}
		return []Step{{
			Capability: capabilityx.CapCSVListFiles,
			Args:       staticArgs(map[string]any{"select": sel}),
			Note:       "scanned data directory for csv files",
		}}, nil
	}
}

// AnalysisPlaybook loads the selected CSV into a named frame and profiles
// it.
func AnalysisPlaybook() Playbook {
	return func(task contractx.Task) ([]Step, error) {
		csvPath := task.Param("csv")
		if csvPath == "" {
			return nil, fmt.Errorf("task param %q is required", "csv")
		}
		frame := frameParam(task)
		return []Step{
			{
				Capability: capabilityx.CapFrameFromCSV,
				Args:       staticArgs(map[string]any{"csv_path": csvPath, "frame": frame}),
				Note:       fmt.Sprintf("loaded %s into frame %s", csvPath, frame),
			},
			{
				Capability: capabilityx.CapFrameInfo,
				Args:       staticArgs(map[string]any{"frame": frame}),
				Note:       "profiled frame shape and column types",
			},
			{
				Capability: capabilityx.CapFrameColumnStatistics,
				Args:       staticArgs(map[string]any{"frame": frame}),
				Note:       "computed descriptive statistics",
			},
		}, nil
	}
}

// StatisticsPlaybook computes correlations and value counts and persists
// the digest as a metadata record under the cache directory.
func StatisticsPlaybook(frames *capabilityx.Frames) Playbook {
	return func(task contractx.Task) ([]Step, error) {
		frame := frameParam(task)
		f, err := frames.Get(frame)
		if err != nil {
			return nil, err
		}

		steps := []Step{{
			Capability: capabilityx.CapFrameCorrelationMatrix,
			Args:       staticArgs(map[string]any{"frame": frame}),
			Note:       "computed correlation matrix",
		}}

		cats := f.CategoricalColumns()
		if len(cats) > 3 {
			cats = cats[:3]
		}
		for _, col := range cats {
			steps = append(steps, Step{
				Capability: capabilityx.CapFrameValueCounts,
				Args:       staticArgs(map[string]any{"frame": frame, "column": col}),
				Note:       fmt.Sprintf("tallied values of %s", col),
			})
		}

		artifactName := task.Param("artifact")
		if artifactName == "" {
			artifactName = "correlations"
		}
		steps = append(steps, Step{
			Capability: capabilityx.CapFileWrite,
			Args: func(prior []contractx.CapabilityResult) (map[string]any, error) {
				digest := make(map[string]any, len(prior))
				for _, res := range prior {
					switch res.Capability {
					case capabilityx.CapFrameCorrelationMatrix:
						digest["correlation"] = res.Output
					case capabilityx.CapFrameValueCounts:
						col, _ := res.Output["column"].(string)
						if digest["value_counts"] == nil {
							digest["value_counts"] = map[string]any{}
						}
						digest["value_counts"].(map[string]any)[col] = res.Output["counts"]
					}
				}
				payload, err := json.MarshalIndent(digest, "", "  ")
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"path":     fmt.Sprintf("cache/%s_statistics.json", safeName(frame)),
					"content":  string(payload),
					"artifact": artifactName,
					"kind":     string(contractx.KindMetadata),
				}, nil
			},
			Note: "persisted statistics digest",
		})
		return steps, nil
	}
}

// VisualizationPlaybook plans exactly five charts with a deterministic
// column selection policy: first numeric column histogram, first
// categorical bar, first two numerics scatter, last numeric box, second
// categorical bar.
func VisualizationPlaybook(frames *capabilityx.Frames) Playbook {
	return func(task contractx.Task) ([]Step, error) {
		frame := frameParam(task)
		f, err := frames.Get(frame)
		if err != nil {
			return nil, err
		}

		nums := f.NumericColumns()
		cats := f.CategoricalColumns()
		if len(nums) == 0 {
			return nil, fmt.Errorf("frame %s has no numeric columns to chart", frame)
		}
		pickCat := func(i int) string {
			if len(cats) == 0 {
				return nums[0]
			}
			return cats[i%len(cats)]
		}
		scatterY := nums[0]
		if len(nums) > 1 {
			scatterY = nums[1]
		}
		boxCol := nums[len(nums)-1]

		charts := []struct {
			capName string
			args    map[string]any
			note    string
		}{
			{
				capName: capabilityx.CapChartHistogram,
				args: map[string]any{
					"frame": frame, "column": nums[0],
					"output_path": fmt.Sprintf("chart1_%s_hist.svg", safeName(nums[0])),
					"title":       fmt.Sprintf("Distribution of %s", nums[0]),
				},
				note: fmt.Sprintf("histogram of %s", nums[0]),
			},
			{
				capName: capabilityx.CapChartBar,
				args: map[string]any{
					"frame": frame, "column": pickCat(0),
					"output_path": fmt.Sprintf("chart2_%s_bar.svg", safeName(pickCat(0))),
					"title":       fmt.Sprintf("%s counts", pickCat(0)),
				},
				note: fmt.Sprintf("bar chart of %s", pickCat(0)),
			},
			{
				capName: capabilityx.CapChartScatter,
				args: map[string]any{
					"frame": frame, "x": nums[0], "y": scatterY,
					"output_path": fmt.Sprintf("chart3_%s_vs_%s_scatter.svg", safeName(nums[0]), safeName(scatterY)),
					"title":       fmt.Sprintf("%s vs %s", nums[0], scatterY),
				},
				note: fmt.Sprintf("scatter of %s vs %s", nums[0], scatterY),
			},
			{
				capName: capabilityx.CapChartBox,
				args: map[string]any{
					"frame": frame, "column": boxCol,
					"output_path": fmt.Sprintf("chart4_%s_box.svg", safeName(boxCol)),
					"title":       fmt.Sprintf("%s spread", boxCol),
				},
				note: fmt.Sprintf("box plot of %s", boxCol),
			},
			{
				capName: capabilityx.CapChartBar,
				args: map[string]any{
					"frame": frame, "column": pickCat(1),
					"output_path": fmt.Sprintf("chart5_%s_bar.svg", safeName(pickCat(1))),
					"title":       fmt.Sprintf("%s counts", pickCat(1)),
				},
				note: fmt.Sprintf("bar chart of %s", pickCat(1)),
			},
		}

		steps := make([]Step, 0, len(charts))
		for _, ch := range charts {
			steps = append(steps, Step{
				Capability: ch.capName,
				Args:       staticArgs(ch.args),
				Note:       ch.note,
			})
		}
		return steps, nil
	}
}

// ReportPlaybook recomputes the headline numbers, asks the narrator to
// phrase the findings, and writes the markdown report.
func ReportPlaybook(now func() time.Time) Playbook {
	if now == nil {
		now = time.Now
	}
	return func(task contractx.Task) ([]Step, error) {
		frame := frameParam(task)
		reportPath := task.Param("report_path")
		if reportPath == "" {
			reportPath = fmt.Sprintf("reports/analysis_report_%s.md", now().UTC().Format("20060102"))
		}
		artifactName := task.Param("artifact")
		if artifactName == "" {
			artifactName = "report"
		}
		charts := splitCharts(task.Param("charts"))

		return []Step{
			{
				Capability: capabilityx.CapFrameInfo,
				Args:       staticArgs(map[string]any{"frame": frame}),
				Note:       "collected frame overview",
			},
			{
				Capability: capabilityx.CapFrameColumnStatistics,
				Args:       staticArgs(map[string]any{"frame": frame}),
				Note:       "collected descriptive statistics",
			},
			{
				Capability: capabilityx.CapFrameCorrelationMatrix,
				Args:       staticArgs(map[string]any{"frame": frame}),
				Note:       "collected correlations",
			},
			{
				Capability: capabilityx.CapReportNarrative,
				Args: func(prior []contractx.CapabilityResult) (map[string]any, error) {
					return map[string]any{"findings": findingsDigest(prior)}, nil
				},
				Note: "phrased key findings",
			},
			{
				Capability: capabilityx.CapFileWrite,
				Args: func(prior []contractx.CapabilityResult) (map[string]any, error) {
					content, err := renderReport(prior, charts, now().UTC())
					if err != nil {
						return nil, err
					}
					return map[string]any{
						"path":     reportPath,
						"content":  content,
						"artifact": artifactName,
						"kind":     string(contractx.KindReport),
					}, nil
				},
				Note: "wrote markdown report",
			},
		}, nil
	}
}

func splitCharts(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func outputFor(prior []contractx.CapabilityResult, capName string) map[string]any {
	for _, res := range prior {
		if res.Capability == capName {
			return res.Output
		}
	}
	return nil
}

// findingsDigest compresses the collected outputs into the plain-text form
// handed to the narrator.
func findingsDigest(prior []contractx.CapabilityResult) string {
	var b strings.Builder
	if info := outputFor(prior, capabilityx.CapFrameInfo); info != nil {
		fmt.Fprintf(&b, "dataset %v with %v rows and %d columns. ",
			info["frame"], info["rows"], countColumns(info))
	}
	if stats := outputFor(prior, capabilityx.CapFrameColumnStatistics); stats != nil {
		if m, ok := stats["statistics"].(map[string]capabilityx.ColumnStats); ok {
			cols := sortedKeys(m)
			for _, col := range cols {
				st := m[col]
				fmt.Fprintf(&b, "%s: mean %.2f, range %.2f to %.2f. ", col, st.Mean, st.Min, st.Max)
			}
		}
	}
	if corr := outputFor(prior, capabilityx.CapFrameCorrelationMatrix); corr != nil {
		for _, line := range topCorrelations(corr, 3) {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

func countColumns(info map[string]any) int {
	cols, _ := info["columns"].([]string)
	return len(cols)
}

func sortedKeys(m map[string]capabilityx.ColumnStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// topCorrelations returns the k strongest off-diagonal pairs.
func topCorrelations(corr map[string]any, k int) []string {
	cols, _ := corr["columns"].([]string)
	matrix, _ := corr["matrix"].([][]float64)
	if len(cols) < 2 || len(matrix) != len(cols) {
		return nil
	}

	type pair struct {
		a, b string
		r    float64
	}
	pairs := make([]pair, 0, len(cols)*len(cols)/2)
	for i := range cols {
		for j := i + 1; j < len(cols); j++ {
			r := matrix[i][j]
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, pair{a: cols[i], b: cols[j], r: r})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].r), math.Abs(pairs[j].r)
		if ai != aj {
			return ai > aj
		}
		return pairs[i].a+pairs[i].b < pairs[j].a+pairs[j].b
	})
	if len(pairs) > k {
		pairs = pairs[:k]
	}

	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, fmt.Sprintf("%s and %s correlate at %.2f.", p.a, p.b, p.r))
	}
	return out
}

func renderReport(prior []contractx.CapabilityResult, charts []string, now time.Time) (string, error) {
	info := outputFor(prior, capabilityx.CapFrameInfo)
	if info == nil {
		return "", fmt.Errorf("frame overview missing from prior steps")
	}
	var b strings.Builder
	b.WriteString("# Data Analysis Report\n\n")
	fmt.Fprintf(&b, "*Generated: %s*\n\n", now.Format(time.RFC3339))

	b.WriteString("## Executive Summary\n\n")
	if narrative := outputFor(prior, capabilityx.CapReportNarrative); narrative != nil {
		if text, _ := narrative["text"].(string); text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("## Data Overview\n\n")
	fmt.Fprintf(&b, "- **Dataset:** %v\n", info["frame"])
	fmt.Fprintf(&b, "- **Records:** %v rows\n", info["rows"])
	fmt.Fprintf(&b, "- **Columns:** %d\n\n", countColumns(info))

	if types, ok := info["types"].(map[string]string); ok {
		b.WriteString("## Column Information\n\n")
		cols, _ := info["columns"].([]string)
		for _, col := range cols {
			fmt.Fprintf(&b, "- `%s` (%s)\n", col, types[col])
		}
		b.WriteString("\n")
	}

	if stats := outputFor(prior, capabilityx.CapFrameColumnStatistics); stats != nil {
		if m, ok := stats["statistics"].(map[string]capabilityx.ColumnStats); ok && len(m) > 0 {
			b.WriteString("## Statistical Analysis\n\n")
			b.WriteString("| Column | Count | Mean | Std | Min | Median | Max |\n")
			b.WriteString("|---|---|---|---|---|---|---|\n")
			for _, col := range sortedKeys(m) {
				st := m[col]
				fmt.Fprintf(&b, "| %s | %d | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
					col, st.Count, st.Mean, st.Std, st.Min, st.Median, st.Max)
			}
			b.WriteString("\n")
		}
	}

	if corr := outputFor(prior, capabilityx.CapFrameCorrelationMatrix); corr != nil {
		if lines := topCorrelations(corr, 5); len(lines) > 0 {
			b.WriteString("### Correlations\n\n")
			for _, line := range lines {
				fmt.Fprintf(&b, "- %s\n", line)
			}
			b.WriteString("\n")
		}
	}

	if len(charts) > 0 {
		b.WriteString("## Visualizations\n\n")
		for i, path := range charts {
			fmt.Fprintf(&b, "%d. `%s`\n", i+1, path)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Methodology\n\n")
	b.WriteString("- CSV parsed into an immutable named frame\n")
	b.WriteString("- Descriptive statistics and Pearson correlations computed per numeric column\n")
	b.WriteString("- Five charts rendered with a deterministic column selection policy\n")
	return b.String(), nil
}
