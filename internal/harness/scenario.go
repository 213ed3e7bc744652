// Package harness runs declarative save scenarios against an in-memory
// database and compares the resulting traces with golden snapshots. A
// scenario is a YAML file describing one or more buffer saves for a
// kanji; symbolic refs stand in for record identities so a later step
// can edit or delete records created by an earlier one.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Save step actions.
const (
	ActionReadings        = "readings"
	ActionMeanings        = "meanings"
	ActionClassifications = "classifications"
)

// Assertion types evaluated against the final database state.
const (
	AssertCount = "count"
	AssertDense = "dense"
	AssertState = "state"
)

// Scenario is one declarative test case.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Setup       Setup       `yaml:"setup,omitempty"`
	Steps       []Step      `yaml:"steps"`
	Assertions  []Assertion `yaml:"assertions,omitempty"`
}

// Setup declares the parent rows created before any step runs.
type Setup struct {
	Kanji []string `yaml:"kanji,omitempty"`
}

// Step is a single buffer save. The action picks which buffers are
// read; the rest stay empty.
type Step struct {
	Save             string           `yaml:"save"`
	Kanji            string           `yaml:"kanji"`
	On               []ReadingItem    `yaml:"on,omitempty"`
	Kun              []ReadingItem    `yaml:"kun,omitempty"`
	Meanings         []MeaningItem    `yaml:"meanings,omitempty"`
	Groups           []GroupItem      `yaml:"groups,omitempty"`
	Members          []MemberItem     `yaml:"members,omitempty"`
	Classifications  []Classification `yaml:"classifications,omitempty"`
	GroupingDisabled bool             `yaml:"groupingDisabled,omitempty"`
}

// ReadingItem is an on or kun reading buffer entry. Ref names the
// record identity: an unbound ref becomes a placeholder, a ref bound
// by an earlier step resolves to the created row.
type ReadingItem struct {
	Ref       string `yaml:"ref"`
	Reading   string `yaml:"reading"`
	Okurigana string `yaml:"okurigana,omitempty"`
	Level     string `yaml:"level,omitempty"`
	Delete    bool   `yaml:"delete,omitempty"`
}

type MeaningItem struct {
	Ref    string `yaml:"ref"`
	Text   string `yaml:"text"`
	Info   string `yaml:"info,omitempty"`
	Delete bool   `yaml:"delete,omitempty"`
}

type GroupItem struct {
	Ref     string `yaml:"ref"`
	Reading string `yaml:"reading"`
	Delete  bool   `yaml:"delete,omitempty"`
}

type MemberItem struct {
	Ref     string `yaml:"ref"`
	Group   string `yaml:"group"`
	Meaning string `yaml:"meaning"`
	Delete  bool   `yaml:"delete,omitempty"`
}

type Classification struct {
	Ref    string `yaml:"ref"`
	Type   string `yaml:"type"`
	Delete bool   `yaml:"delete,omitempty"`
}

// Assertion is a check run after all steps complete.
type Assertion struct {
	Type   string         `yaml:"type"`
	Table  string         `yaml:"table"`
	Count  int            `yaml:"count,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown YAML keys
// are rejected so typos in scenario files fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := strictDecode(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func strictDecode(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario missing name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	for i, st := range s.Steps {
		switch st.Save {
		case ActionReadings, ActionMeanings, ActionClassifications:
		default:
			return fmt.Errorf("scenario %q step %d: unknown save action %q", s.Name, i, st.Save)
		}
		if st.Kanji == "" {
			return fmt.Errorf("scenario %q step %d: missing kanji", s.Name, i)
		}
		for j, m := range st.Members {
			if m.Group == "" || m.Meaning == "" {
				return fmt.Errorf("scenario %q step %d member %d: group and meaning refs are required", s.Name, i, j)
			}
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertCount, AssertDense, AssertState:
		default:
			return fmt.Errorf("scenario %q assertion %d: unknown type %q", s.Name, i, a.Type)
		}
		if a.Table == "" {
			return fmt.Errorf("scenario %q assertion %d: missing table", s.Name, i)
		}
		if a.Type == AssertState && len(a.Expect) == 0 {
			return fmt.Errorf("scenario %q assertion %d: state assertion needs expect fields", s.Name, i)
		}
	}
	return nil
}
