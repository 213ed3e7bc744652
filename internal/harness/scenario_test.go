package harness

import (
	"strings"
	"testing"
)

func TestParseScenarioRejectsUnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
steps:
  - save: readings
    kanji: 日
    onn:
      - ref: a
        reading: ア
`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseScenarioRejectsUnknownAction(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: bad-action
steps:
  - save: occurrences
    kanji: 日
`))
	if err == nil || !strings.Contains(err.Error(), "unknown save action") {
		t.Fatalf("expected unknown action error, got %v", err)
	}
}

func TestParseScenarioRequiresName(t *testing.T) {
	_, err := ParseScenario([]byte(`
steps:
  - save: readings
    kanji: 日
`))
	if err == nil || !strings.Contains(err.Error(), "missing name") {
		t.Fatalf("expected missing name error, got %v", err)
	}
}

func TestParseScenarioRequiresSteps(t *testing.T) {
	_, err := ParseScenario([]byte(`name: empty`))
	if err == nil || !strings.Contains(err.Error(), "no steps") {
		t.Fatalf("expected no steps error, got %v", err)
	}
}

func TestParseScenarioRejectsMemberWithoutRefs(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: bad-member
steps:
  - save: meanings
    kanji: 日
    members:
      - group: g1
`))
	if err == nil || !strings.Contains(err.Error(), "group and meaning refs are required") {
		t.Fatalf("expected member validation error, got %v", err)
	}
}

func TestParseScenarioRejectsUnknownAssertionType(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: bad-assertion
steps:
  - save: readings
    kanji: 日
assertions:
  - type: exists
    table: on_readings
`))
	if err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("expected unknown assertion type error, got %v", err)
	}
}

func TestParseScenarioStateAssertionNeedsExpect(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: bare-state
steps:
  - save: readings
    kanji: 日
assertions:
  - type: state
    table: on_readings
`))
	if err == nil || !strings.Contains(err.Error(), "needs expect fields") {
		t.Fatalf("expected expect validation error, got %v", err)
	}
}
