package hclcfg

import (
	"fmt"

	"github.com/buildloom/buildloom/internal/task"
)

// taskBlock mirrors one task "<name>" "<version>" { ... } block.
type taskBlock struct {
	Name        string `hcl:"name,label"`
	Version     string `hcl:"version,label"`
	Description string `hcl:"description,optional"`

	// Exactly one of Source (build-from-source) or Prebuilt
	// (install-from-prebuilt) selects the task kind.
	Source   *sourceBlock `hcl:"source,block"`
	Prebuilt *sourceBlock `hcl:"prebuilt,block"`

	Build   *commandBlock  `hcl:"build,block"`
	Install *commandBlock  `hcl:"install,block"`
	Clean   *commandBlock  `hcl:"clean,block"`
	Depends []dependsBlock `hcl:"depends,block"`

	Env         map[string]string `hcl:"env,optional"`
	BuildOnce   bool              `hcl:"build_once,optional"`
	InstallOnce bool              `hcl:"install_once,optional"`
	TargetArch  []string          `hcl:"target_arch,optional"`
}

// sourceBlock selects exactly one input location.
type sourceBlock struct {
	Local   string    `hcl:"local,optional"`
	Archive string    `hcl:"archive,optional"`
	Git     *gitBlock `hcl:"git,block"`
}

type gitBlock struct {
	URL      string `hcl:"url"`
	Branch   string `hcl:"branch,optional"`
	Revision string `hcl:"revision,optional"`
}

type commandBlock struct {
	Command string `hcl:"command,optional"`
}

type dependsBlock struct {
	Name    string `hcl:"name"`
	Version string `hcl:"version"`
}

// translate converts the decoded block into the format-agnostic task model.
func (b *taskBlock) translate() (*task.Task, error) {
	t := &task.Task{
		Name:        b.Name,
		Version:     b.Version,
		Description: b.Description,
		Env:         b.Env,
		BuildOnce:   b.BuildOnce,
		InstallOnce: b.InstallOnce,
		TargetArch:  b.TargetArch,
	}
	id := t.Identity()

	switch {
	case b.Source != nil && b.Prebuilt != nil:
		return nil, fmt.Errorf("task %s: declares both source and prebuilt blocks", id)
	case b.Source != nil:
		t.Kind = task.KindBuildFromSource
		src, err := b.Source.translate(id)
		if err != nil {
			return nil, err
		}
		t.Source = src
	case b.Prebuilt != nil:
		t.Kind = task.KindInstallFromPrebuilt
		src, err := b.Prebuilt.translate(id)
		if err != nil {
			return nil, err
		}
		t.Source = src
	default:
		return nil, fmt.Errorf("task %s: needs a source or prebuilt block", id)
	}

	if b.Build != nil {
		t.BuildCommand = b.Build.Command
	}
	if b.Install != nil {
		t.InstallCommand = b.Install.Command
	}
	if b.Clean != nil {
		t.CleanCommand = b.Clean.Command
	}

	for _, dep := range b.Depends {
		t.Depends = append(t.Depends, task.Identity{Name: dep.Name, Version: dep.Version})
	}

	return t, nil
}

func (b *sourceBlock) translate(id task.Identity) (task.Source, error) {
	declared := 0
	var src task.Source
	if b.Local != "" {
		declared++
		src = task.Source{Kind: task.SourceLocal, Path: b.Local}
	}
	if b.Archive != "" {
		declared++
		src = task.Source{Kind: task.SourceArchive, URL: b.Archive}
	}
	if b.Git != nil {
		declared++
		src = task.Source{Kind: task.SourceGit, Git: task.GitSource{
			URL:      b.Git.URL,
			Branch:   b.Git.Branch,
			Revision: b.Git.Revision,
		}}
	}
	if declared != 1 {
		return task.Source{}, fmt.Errorf("task %s: source block must declare exactly one of local, archive, or git", id)
	}
	return src, nil
}
