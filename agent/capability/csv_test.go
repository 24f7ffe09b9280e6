package capability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

const carCSV = "year,selling_price,fuel\n2015,350000,Diesel\n2017,450000,Petrol\n2019,600000,Diesel\n"

func writeDataFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestListCSVFilesSortedAndFiltered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeDataFile(t, dir, "zeta.csv", carCSV)
	writeDataFile(t, dir, "alpha.csv", carCSV)
	writeDataFile(t, dir, "notes.txt", "skip me")
	if err := os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := ListCSVFiles(dir)
	if err != nil {
		t.Fatalf("ListCSVFiles() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ListCSVFiles() returned %d files, want 2", len(files))
	}
	if files[0].Name != "alpha.csv" || files[1].Name != "zeta.csv" {
		t.Fatalf("files not sorted by name: %s, %s", files[0].Name, files[1].Name)
	}
	if files[0].Path != filepath.Join(dir, "alpha.csv") {
		t.Fatalf("unexpected path %s", files[0].Path)
	}
}

func TestListFilesCapabilitySelectsPrimaryDataset(t *testing.T) {
	t.Parallel()

	c, deps := testCatalog(t)
	writeDataFile(t, deps.DataDir, "cars.csv", carCSV)
	writeDataFile(t, deps.DataDir, "extra.csv", carCSV)

	res, err := c.Invoke(context.Background(), CapCSVListFiles, map[string]any{"select": "dataset"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Error != "" {
		t.Fatalf("capability error = %q", res.Error)
	}
	if len(res.Artifacts) != 2 {
		t.Fatalf("got %d artifacts, want 2", len(res.Artifacts))
	}
	if res.Artifacts[0].Name != "files" || res.Artifacts[0].Kind != contractx.KindMetadata {
		t.Fatalf("unexpected files artifact %+v", res.Artifacts[0])
	}
	sel := res.Artifacts[1]
	if sel.Name != "dataset" {
		t.Fatalf("selected artifact name = %s, want dataset", sel.Name)
	}
	if sel.Location != filepath.Join(deps.DataDir, "cars.csv") {
		t.Fatalf("selected artifact must point at the first sorted csv, got %s", sel.Location)
	}
}

func TestListFilesCapabilityEmptyDirReportsError(t *testing.T) {
	t.Parallel()

	c, _ := testCatalog(t)
	res, err := c.Invoke(context.Background(), CapCSVListFiles, nil)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Error == "" {
		t.Fatal("expected a capability error for an empty data dir")
	}
}

func TestFrameFromCSVLoadsIntoStore(t *testing.T) {
	t.Parallel()

	c, deps := testCatalog(t)
	writeDataFile(t, deps.DataDir, "cars.csv", carCSV)

	res, err := c.Invoke(context.Background(), CapFrameFromCSV, map[string]any{
		"csv_path": "cars.csv",
		"frame":    "main_df",
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Error != "" {
		t.Fatalf("capability error = %q", res.Error)
	}

	f, err := deps.Frames.Get("main_df")
	if err != nil {
		t.Fatalf("frame main_df not stored: %v", err)
	}
	if f.NumRows() != 3 {
		t.Fatalf("frame has %d rows, want 3", f.NumRows())
	}

	if len(res.Artifacts) != 1 || res.Artifacts[0].Kind != contractx.KindDataframe {
		t.Fatalf("unexpected artifacts %+v", res.Artifacts)
	}
	if res.Artifacts[0].Location != "mem://main_df" {
		t.Fatalf("artifact location = %s", res.Artifacts[0].Location)
	}
}

func TestFrameFromCSVMissingFileReportsError(t *testing.T) {
	t.Parallel()

	c, _ := testCatalog(t)
	res, err := c.Invoke(context.Background(), CapFrameFromCSV, map[string]any{
		"csv_path": "absent.csv",
		"frame":    "main_df",
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Error == "" {
		t.Fatal("expected a capability error for a missing csv")
	}
}
