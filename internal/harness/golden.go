package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunGolden executes the scenario at path, reports assertion failures,
// and compares the trace with the golden snapshot named after the
// scenario. Regenerate snapshots with:
//
//	go test ./internal/harness -update
func RunGolden(t *testing.T, path string) {
	t.Helper()

	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("loading scenario: %v", err)
	}
	res, failures, err := Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("running scenario %q: %v", sc.Name, err)
	}
	for _, f := range failures {
		t.Errorf("scenario %q: %s", sc.Name, f)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		t.Fatalf("encoding trace: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
	g.Assert(t, sc.Name, append(data, '\n'))
}
