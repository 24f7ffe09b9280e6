package artifact

import (
	"errors"
	"testing"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

func TestRegisterThenLookupReturnsSameArtifact(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	in := contractx.Artifact{
		Name:     "files",
		Kind:     contractx.KindMetadata,
		Location: "mem://csv-files",
		Phase:    0,
	}
	if err := reg.Register(in); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := reg.Lookup("files")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Name != in.Name || got.Kind != in.Kind || got.Location != in.Location || got.Phase != 0 {
		t.Fatalf("Lookup() = %+v, want %+v", got, in)
	}
	if got.Version != 1 {
		t.Fatalf("Lookup() version = %d, want 1", got.Version)
	}
}

func TestRegisterDuplicateNameFromOtherPhase(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(contractx.Artifact{Name: "main_df", Kind: contractx.KindDataframe, Phase: 1}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := reg.Register(contractx.Artifact{Name: "main_df", Kind: contractx.KindDataframe, Phase: 2})
	if !errors.Is(err, contractx.ErrDuplicateArtifact) {
		t.Fatalf("Register() error = %v, want ErrDuplicateArtifact", err)
	}
}

func TestRegisterSamePhaseCreatesNewVersion(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for i := 0; i < 2; i++ {
		err := reg.Register(contractx.Artifact{
			Name:     "main_df",
			Kind:     contractx.KindDataframe,
			Location: "mem://main_df",
			Phase:    1,
		})
		if err != nil {
			t.Fatalf("Register() attempt %d error = %v", i+1, err)
		}
	}

	got, err := reg.Lookup("main_df")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("Lookup() version = %d, want 2", got.Version)
	}
}

func TestLookupUnknownName(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if _, err := reg.Lookup("missing"); !errors.Is(err, contractx.ErrArtifactNotFound) {
		t.Fatalf("Lookup() error = %v, want ErrArtifactNotFound", err)
	}
}

func TestCountKindCountsDistinctNamesPerPhase(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for _, name := range []string{"chart1", "chart2", "chart3"} {
		if err := reg.Register(contractx.Artifact{Name: name, Kind: contractx.KindImage, Phase: 3}); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}
	// A re-registered chart is a new version, not a new artifact.
	if err := reg.Register(contractx.Artifact{Name: "chart1", Kind: contractx.KindImage, Phase: 3}); err != nil {
		t.Fatalf("Register(chart1 again) error = %v", err)
	}
	if err := reg.Register(contractx.Artifact{Name: "report", Kind: contractx.KindReport, Phase: 4}); err != nil {
		t.Fatalf("Register(report) error = %v", err)
	}

	if got := reg.CountKind(3, contractx.KindImage); got != 3 {
		t.Fatalf("CountKind(3, image) = %d, want 3", got)
	}
	if got := reg.CountKind(3, contractx.KindReport); got != 0 {
		t.Fatalf("CountKind(3, report) = %d, want 0", got)
	}
}

func TestAllOrdersByPhaseThenName(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for _, a := range []contractx.Artifact{
		{Name: "report", Kind: contractx.KindReport, Phase: 4},
		{Name: "main_df", Kind: contractx.KindDataframe, Phase: 1},
		{Name: "files", Kind: contractx.KindMetadata, Phase: 0},
		{Name: "dataset", Kind: contractx.KindMetadata, Phase: 0},
	} {
		if err := reg.Register(a); err != nil {
			t.Fatalf("Register(%s) error = %v", a.Name, err)
		}
	}

	all := reg.All()
	wantOrder := []string{"dataset", "files", "main_df", "report"}
	if len(all) != len(wantOrder) {
		t.Fatalf("All() returned %d artifacts, want %d", len(all), len(wantOrder))
	}
	for i, name := range wantOrder {
		if all[i].Name != name {
			t.Fatalf("All()[%d].Name = %s, want %s", i, all[i].Name, name)
		}
	}
}
