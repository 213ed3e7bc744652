package harness_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jisaku/kanjidb/internal/harness"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			harness.RunGolden(t, path)
		})
	}
}

func TestRunReportsAssertionFailures(t *testing.T) {
	sc, err := harness.ParseScenario([]byte(`
name: failing-count
setup:
  kanji: ["日"]
steps:
  - save: readings
    kanji: 日
    on:
      - ref: nichi
        reading: ニチ
assertions:
  - type: count
    table: on_readings
    count: 5
`))
	require.NoError(t, err)

	res, failures, err := harness.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, res.Trace, 1)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "expected 5 rows, got 1")
}

func TestRunRejectsUnknownKanji(t *testing.T) {
	sc, err := harness.ParseScenario([]byte(`
name: missing-kanji
steps:
  - save: readings
    kanji: 日
`))
	require.NoError(t, err)

	_, _, err = harness.Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not declared in setup")
}

func TestRunCrossStepRefEditsExistingRow(t *testing.T) {
	sc, err := harness.ParseScenario([]byte(`
name: cross-step-ref
setup:
  kanji: ["月"]
steps:
  - save: readings
    kanji: 月
    on:
      - ref: getsu
        reading: ゲツ
  - save: readings
    kanji: 月
    on:
      - ref: getsu
        reading: ガツ
assertions:
  - type: count
    table: on_readings
    count: 1
  - type: state
    table: on_readings
    where: { id: 1 }
    expect: { reading: ガツ, display_order: 0 }
`))
	require.NoError(t, err)

	res, failures, err := harness.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Empty(t, failures)

	rows := res.Trace[1].State["on_readings"]
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"], "second save must edit the row, not recreate it")
}
