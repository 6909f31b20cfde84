package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan is a ranking written ahead of time: items in rank order, each with
// its statement of purpose.
//
//	items:
//	  - id: C
//	    sop: I have shipped two network stacks.
//	  - id: A
//	    sop: ...
type Plan struct {
	Items []PlanItem `yaml:"items"`
}

// PlanItem is one ranked candidate of a Plan. An empty SOP keeps the text
// already stored for the candidate, if any.
type PlanItem struct {
	ID  string `yaml:"id"`
	SOP string `yaml:"sop"`
}

// IDs returns the candidate ids in rank order.
func (p Plan) IDs() []string {
	out := make([]string, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.ID
	}
	return out
}

// Validate rejects empty plans, blank ids and duplicates.
func (p Plan) Validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("no items: %w", ErrInvalidPlan)
	}
	seen := make(map[string]struct{}, len(p.Items))
	for i, it := range p.Items {
		if it.ID == "" {
			return fmt.Errorf("item %d has no id: %w", i+1, ErrInvalidPlan)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("%q listed twice: %w", it.ID, ErrInvalidPlan)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// ParsePlan decodes and validates a YAML plan. Unknown keys are rejected.
func ParsePlan(r io.Reader) (Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return Plan{}, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// ReadPlanFile parses the plan at path.
func ReadPlanFile(path string) (Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return Plan{}, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()
	return ParsePlan(f)
}
