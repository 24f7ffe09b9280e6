package capability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

const CapFileWrite = "file.write"

// confinePath resolves rel under base and rejects anything escaping it.
func confinePath(base, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("output path is empty")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative", rel)
	}
	path := filepath.Join(base, rel)
	resolved, err := filepath.Rel(base, path)
	if err != nil || resolved == ".." || strings.HasPrefix(resolved, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes base directory", rel)
	}
	return path, nil
}

func registerFile(c *Catalog, deps Deps) error {
	return c.add(Info{
		Name:       CapFileWrite,
		Desc:       "Write text content to a path under the base directory.",
		SideEffect: contractx.SideEffectWrite,
		Params: map[string]Param{
			"path":     {Type: "string", Desc: "Relative path under the base dir", Required: true},
			"content":  {Type: "string", Desc: "Text content to persist", Required: true},
			"artifact": {Type: "string", Desc: "Logical artifact name for the written file"},
			"kind":     {Type: "string", Desc: "Artifact kind, defaults to report-file for .md paths"},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		path, err := confinePath(deps.BaseDir, stringArg(args, "path"))
		if err != nil {
			return contractx.CapabilityResult{Error: err.Error()}, nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return contractx.CapabilityResult{}, err
		}
		content, _ := args["content"].(string)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return contractx.CapabilityResult{}, err
		}

		res := contractx.CapabilityResult{
			Output: map[string]any{"path": path, "bytes": len(content)},
		}
		if name := stringArg(args, "artifact"); name != "" {
			kind := contractx.ArtifactKind(stringArg(args, "kind"))
			if kind == "" {
				if strings.EqualFold(filepath.Ext(path), ".md") {
					kind = contractx.KindReport
				} else {
					kind = contractx.KindMetadata
				}
			}
			res.Artifacts = []contractx.Artifact{{
				Name:     name,
				Kind:     kind,
				Location: path,
			}}
		}
		return res, nil
	})
}
