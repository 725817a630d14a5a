package workflow

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tildaslashalef/critiq/internal/utils"
)

var (
	// ErrDefinitionNotFound is returned when the definitions file does not exist
	ErrDefinitionNotFound = errors.New("workflow definitions file not found")
	// ErrDefinitionParsing is returned when the definitions file is not valid YAML
	ErrDefinitionParsing = errors.New("failed to parse workflow definitions")
	// ErrInvalidWorkflow is returned for a structurally invalid workflow
	ErrInvalidWorkflow = errors.New("invalid workflow")
	// ErrUnknownStepKind is returned for a step kind other than review, fix or test
	ErrUnknownStepKind = errors.New("unknown step kind")
	// ErrWorkflowNotFound is returned when no workflow has the requested name
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// DefaultWorkflowName names the built-in workflow
const DefaultWorkflowName = "review-fix-test"

// StepKind is what a step does
type StepKind string

const (
	StepReview StepKind = "review"
	StepFix    StepKind = "fix"
	StepTest   StepKind = "test"
)

// Step is one entry of a workflow
type Step struct {
	Name            string        `yaml:"name"`
	Kind            StepKind      `yaml:"kind"`
	Command         string        `yaml:"command,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	ContinueOnError bool          `yaml:"continueOnError,omitempty"`
	// InPlace makes a fix step overwrite the file instead of writing <file>.fixed
	InPlace bool `yaml:"inPlace,omitempty"`
}

// Workflow is an ordered list of steps run against one file
type Workflow struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

type definitionsFile struct {
	Workflows []Workflow `yaml:"workflows"`
}

// Default returns the built-in review-fix-test workflow. The test step
// runs the Go test suite; "{file}" in a command expands to the file path.
func Default() *Workflow {
	return &Workflow{
		Name:        DefaultWorkflowName,
		Description: "Review a file, apply the suggested fixes and run the tests",
		Steps: []Step{
			{Name: "review", Kind: StepReview},
			{Name: "fix", Kind: StepFix},
			{Name: "test", Kind: StepTest, Command: "go test ./..."},
		},
	}
}

// Validate normalizes step names and checks the workflow can run
func (w *Workflow) Validate() error {
	w.Name = utils.SanitizeName(w.Name)
	if w.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidWorkflow)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidWorkflow, w.Name)
	}

	reviewed := false
	for i := range w.Steps {
		s := &w.Steps[i]
		s.Kind = StepKind(strings.ToLower(strings.TrimSpace(string(s.Kind))))
		if s.Name == "" {
			s.Name = string(s.Kind)
		}
		switch s.Kind {
		case StepReview:
			reviewed = true
		case StepFix:
			if !reviewed {
				return fmt.Errorf("%w: %s step %q needs an earlier review step", ErrInvalidWorkflow, w.Name, s.Name)
			}
		case StepTest:
			if strings.TrimSpace(s.Command) == "" {
				return fmt.Errorf("%w: %s step %q has no command", ErrInvalidWorkflow, w.Name, s.Name)
			}
		default:
			return fmt.Errorf("%w: %q in step %q", ErrUnknownStepKind, s.Kind, s.Name)
		}
		if s.Timeout < 0 {
			return fmt.Errorf("%w: %s step %q has a negative timeout", ErrInvalidWorkflow, w.Name, s.Name)
		}
	}
	return nil
}

// ParseDefinitions decodes a definitions document:
//
//	workflows:
//	  - name: lint
//	    steps:
//	      - kind: review
//	      - kind: test
//	        command: golangci-lint run
func ParseDefinitions(data []byte) ([]Workflow, error) {
	var doc definitionsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefinitionParsing, err)
	}

	seen := make(map[string]bool, len(doc.Workflows))
	for i := range doc.Workflows {
		if err := doc.Workflows[i].Validate(); err != nil {
			return nil, err
		}
		name := doc.Workflows[i].Name
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidWorkflow, name)
		}
		seen[name] = true
	}
	return doc.Workflows, nil
}

// LoadDefinitions reads workflow definitions from a YAML file
func LoadDefinitions(path string) ([]Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, path)
		}
		return nil, fmt.Errorf("failed to read workflow definitions %s: %w", path, err)
	}
	return ParseDefinitions(data)
}

// Catalog holds the workflows that can be run by name
type Catalog struct {
	workflows map[string]*Workflow
	order     []string
}

// NewCatalog returns a catalog of the built-in workflow plus defs. A
// definition named like a built-in replaces it.
func NewCatalog(defs []Workflow) *Catalog {
	c := &Catalog{workflows: make(map[string]*Workflow)}
	c.add(Default())
	for i := range defs {
		wf := defs[i]
		c.add(&wf)
	}
	return c
}

// LoadCatalog builds a catalog from the definitions file at path. An empty
// path yields only the built-in workflow.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(nil), nil
	}
	defs, err := LoadDefinitions(path)
	if err != nil {
		return nil, err
	}
	return NewCatalog(defs), nil
}

func (c *Catalog) add(wf *Workflow) {
	if _, ok := c.workflows[wf.Name]; !ok {
		c.order = append(c.order, wf.Name)
	}
	c.workflows[wf.Name] = wf
}

// Get returns the workflow called name
func (c *Catalog) Get(name string) (*Workflow, error) {
	if wf, ok := c.workflows[utils.SanitizeName(name)]; ok {
		return wf, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
}

// List returns the workflows in definition order, built-ins first
func (c *Catalog) List() []*Workflow {
	out := make([]*Workflow, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.workflows[name])
	}
	return out
}
