// Package hclcfg loads task definitions from HCL files into a task
// repository. The core packages never see HCL; they consume the repository
// this loader produces.
package hclcfg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/buildloom/buildloom/internal/ctxlog"
	"github.com/buildloom/buildloom/internal/task"
)

// Loader parses *.hcl task files.
type Loader struct{}

// NewLoader creates a task-file loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes the top-level blocks of one task file.
type fileRoot struct {
	Tasks  []*taskBlock `hcl:"task,block"`
	Remain hcl.Body     `hcl:",remain"`
}

// Variables are exposed to task files for interpolation, e.g.
// command = "make ARCH=${arch}".
type Variables struct {
	Arch      string
	CacheRoot string
}

func (v Variables) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"arch":       cty.StringVal(v.Arch),
			"cache_root": cty.StringVal(v.CacheRoot),
		},
	}
}

// Load parses every .hcl file under path (a file or a directory walked
// recursively) and returns the populated repository. Conflicting duplicate
// declarations across files surface here as repository errors.
func (l *Loader) Load(ctx context.Context, path string, vars Variables) (*task.Repository, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findTaskFiles(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered task files.", "count", len(files), "path", path)

	repo := task.NewRepository()
	parser := hclparse.NewParser()
	evalCtx := vars.evalContext()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("decoding %s: %w", file, diags)
		}

		for _, block := range root.Tasks {
			t, err := block.translate()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			if err := repo.Add(t); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			logger.Debug("Task loaded.", "task", t.Identity().String(), "file", file)
		}
	}

	return repo, nil
}

// findTaskFiles returns every .hcl file at or under path.
func findTaskFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("accessing task path %s: %w", path, err)
	}

	if !info.IsDir() {
		if filepath.Ext(path) != ".hcl" {
			return nil, fmt.Errorf("task file %s is not an .hcl file", path)
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".hcl" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
