package duckdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsbio/hgtscan/internal/score"
	"github.com/omicsbio/hgtscan/internal/taxonomy"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRow(query string, hu float64, candidate bool) ResultRow {
	return ResultRow{
		Ingroup:   "Metazoa",
		Candidate: candidate,
		Result: &score.Result{
			QueryID:         query,
			HU:              hu,
			AI:              hu / 2,
			BitOut:          hu + 100,
			BitIn:           100,
			EvalOut:         1e-40,
			EvalIn:          1e-10,
			WinningCategory: taxonomy.Outgroup,
			Support:         95,
			SupportDefined:  true,
			Lineage:         "Bacteria;undef;Proteobacteria",
		},
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
}

func TestWriteAndCountResults(t *testing.T) {
	s := openInMemory(t)

	err := s.WriteResults([]ResultRow{
		testRow("Q1", 50, true),
		testRow("Q2", 10, false),
	})
	require.NoError(t, err)

	n, err := s.ResultCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWriteResultsDeduplicates(t *testing.T) {
	s := openInMemory(t)

	err := s.WriteResults([]ResultRow{
		testRow("Q1", 50, true),
		testRow("Q1", 60, false),
	})
	require.NoError(t, err)

	n, err := s.ResultCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteResultsReplacesPriorRun(t *testing.T) {
	s := openInMemory(t)

	// A second run over the same query must replace the stored row
	// instead of hitting the primary key.
	require.NoError(t, s.WriteResults([]ResultRow{testRow("Q1", 50, true)}))
	require.NoError(t, s.WriteResults([]ResultRow{testRow("Q1", 60, false)}))

	n, err := s.ResultCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var hu float64
	var candidate bool
	err = s.DB().QueryRow("SELECT hu, is_candidate FROM hgt_results WHERE query = 'Q1'").Scan(&hu, &candidate)
	require.NoError(t, err)
	assert.Equal(t, 60.0, hu)
	assert.False(t, candidate)
}

func TestCandidates(t *testing.T) {
	s := openInMemory(t)

	require.NoError(t, s.WriteResults([]ResultRow{
		testRow("Q1", 50, true),
		testRow("Q2", 10, false),
		testRow("Q3", 80, true),
	}))

	cands, err := s.Candidates()
	require.NoError(t, err)
	require.Len(t, cands, 2)

	// Ordered by descending hU.
	assert.Equal(t, "Q3", cands[0].Query)
	assert.Equal(t, "Q1", cands[1].Query)
	assert.Equal(t, "outgroup", cands[0].WinningCategory)
	require.True(t, cands[0].Support.Valid)
	assert.Equal(t, 95.0, cands[0].Support.Float64)
}

func TestUndefinedSupportStoredAsNull(t *testing.T) {
	s := openInMemory(t)

	row := ResultRow{
		Ingroup:   "Metazoa",
		Candidate: false,
		Result: &score.Result{
			QueryID:         "Q1",
			EvalIn:          1,
			EvalOut:         1,
			WinningCategory: taxonomy.Outgroup,
			Lineage:         "undef;undef;undef",
		},
	}
	require.NoError(t, s.WriteResults([]ResultRow{row}))

	var valid bool
	err := s.DB().QueryRow("SELECT support IS NOT NULL FROM hgt_results WHERE query = 'Q1'").Scan(&valid)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestClearResults(t *testing.T) {
	s := openInMemory(t)

	require.NoError(t, s.WriteResults([]ResultRow{testRow("Q1", 50, true)}))
	require.NoError(t, s.ClearResults())

	n, err := s.ResultCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "scan.duckdb")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteResults([]ResultRow{testRow("Q1", 50, true)}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	n, err := s2.ResultCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
