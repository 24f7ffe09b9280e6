package capability

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

const CapCSVListFiles = "csv.list_files"

// CSVFileInfo is one discovered input file.
type CSVFileInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	SizeMB   float64   `json:"size_mb"`
	Modified time.Time `json:"modified"`
}

// ListCSVFiles returns the *.csv files directly under dir, sorted by name.
func ListCSVFiles(dir string) ([]CSVFileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	out := make([]CSVFileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, CSVFileInfo{
			Name:     e.Name(),
			Path:     filepath.Join(dir, e.Name()),
			SizeMB:   float64(info.Size()) / (1 << 20),
			Modified: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// readCSVFrame parses a CSV into a frame. Relative paths resolve against
// the data dir; the first record is the header.
func readCSVFrame(dataDir, csvPath, frameName string) (*Frame, error) {
	if csvPath == "" {
		return nil, fmt.Errorf("csv_path is empty")
	}
	if frameName == "" {
		return nil, fmt.Errorf("frame name is empty")
	}
	if !filepath.IsAbs(csvPath) && dataDir != "" {
		if rel, err := filepath.Rel(dataDir, csvPath); err != nil || strings.HasPrefix(rel, "..") {
			csvPath = filepath.Join(dataDir, filepath.Base(csvPath))
		}
	}

	file, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", filepath.Base(csvPath), err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("csv %s is empty", filepath.Base(csvPath))
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	return NewFrame(frameName, header, records[1:])
}

func registerCSV(c *Catalog, deps Deps) error {
	return c.add(Info{
		Name:       CapCSVListFiles,
		Desc:       "List CSV files in the data directory with size and modification time.",
		SideEffect: contractx.SideEffectPure,
		Params: map[string]Param{
			"select": {Type: "string", Desc: "Logical name for the selected primary dataset artifact"},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		files, err := ListCSVFiles(deps.DataDir)
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		if len(files) == 0 {
			return contractx.CapabilityResult{Error: fmt.Sprintf("no csv files in %s", deps.DataDir)}, nil
		}

		res := contractx.CapabilityResult{
			Output: map[string]any{
				"files":   files,
				"primary": files[0].Path,
			},
			Artifacts: []contractx.Artifact{{
				Name:     "files",
				Kind:     contractx.KindMetadata,
				Location: "mem://csv-files",
			}},
		}
		if sel := stringArg(args, "select"); sel != "" {
			res.Artifacts = append(res.Artifacts, contractx.Artifact{
				Name:     sel,
				Kind:     contractx.KindMetadata,
				Location: files[0].Path,
			})
		}
		return res, nil
	})
}
