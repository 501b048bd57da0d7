package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsbio/hgtscan/internal/hits"
	"github.com/omicsbio/hgtscan/internal/taxonomy"
)

func testHit(query, taxon string, bitscore, evalue float64, line int) *hits.Hit {
	return &hits.Hit{
		QueryID:   query,
		SubjectID: "subj",
		Evalue:    evalue,
		Bitscore:  bitscore,
		TaxonRaw:  taxon,
		Line:      line,
	}
}

func TestIngestAccept(t *testing.T) {
	a := NewAggregator(newTestStore(), metazoa, 0)

	reason, err := a.Ingest(testHit("Q1", "562", 100, 1e-20, 1))
	require.NoError(t, err)
	assert.Equal(t, RejectNone, reason)

	reason, err = a.Ingest(testHit("Q1", "562", 80, 1e-10, 2))
	require.NoError(t, err)
	assert.Equal(t, RejectNone, reason)

	ev := a.Evidence("Q1")
	require.NotNil(t, ev)
	require.Contains(t, ev, 562)
	assert.Equal(t, []float64{100, 80}, ev[562].Bitscores)
	assert.Equal(t, []float64{1e-20, 1e-10}, ev[562].Evalues)
	assert.Equal(t, 2, a.Accepted())
}

func TestIngestInvalidTaxid(t *testing.T) {
	a := NewAggregator(newTestStore(), metazoa, 0)

	for _, raw := range []string{"N/A", "", "12;34", "-5", "0"} {
		reason, err := a.Ingest(testHit("Q1", raw, 50, 1e-10, 1))
		require.NoError(t, err)
		assert.Equal(t, RejectInvalidTaxid, reason, "taxid %q", raw)
	}

	assert.Equal(t, 5, a.Rejects().InvalidTaxid)

	// The query is registered with empty evidence so it still gets a
	// neutral result row.
	assert.Equal(t, []string{"Q1"}, a.Queries())
	assert.Empty(t, a.Evidence("Q1"))
}

func TestIngestUnknownParent(t *testing.T) {
	a := NewAggregator(newTestStore(), metazoa, 0)

	reason, err := a.Ingest(testHit("Q1", "424242", 50, 1e-10, 1))
	require.NoError(t, err)
	assert.Equal(t, RejectUnknownParent, reason)
	assert.Equal(t, 1, a.Rejects().UnknownParent)
}

func TestIngestSkippedTaxon(t *testing.T) {
	// Skip clade Arthropoda: the fly hit is excluded before scoring; yeast
	// lies outside Arthropoda and passes the skip filter.
	a := NewAggregator(newTestStore(), metazoa, 6656)

	reason, err := a.Ingest(testHit("Q1", "7227", 50, 1e-10, 1))
	require.NoError(t, err)
	assert.Equal(t, RejectSkippedTaxon, reason)

	reason, err = a.Ingest(testHit("Q1", "4932", 50, 1e-10, 2))
	require.NoError(t, err)
	assert.Equal(t, RejectNone, reason)

	assert.Equal(t, 1, a.Rejects().SkippedTaxon)
}

func TestIngestUnassigned(t *testing.T) {
	s := newTestStore()
	s.AddNode(32644, 1, "no rank")
	s.AddNode(99001, 32644, "species")
	a := NewAggregator(s, metazoa, 0)

	reason, err := a.Ingest(testHit("Q1", "99001", 50, 1e-10, 1))
	require.NoError(t, err)
	assert.Equal(t, RejectUnassigned, reason)
	assert.Equal(t, 1, a.Rejects().Unassigned)
}

func TestIngestRedirectedTaxid(t *testing.T) {
	s := newTestStore()
	s.Redirect(600, 6656)
	a := NewAggregator(s, metazoa, 0)

	reason, err := a.Ingest(testHit("Q1", "600", 50, 1e-10, 1))
	require.NoError(t, err)
	assert.Equal(t, RejectNone, reason)
	assert.Contains(t, a.Evidence("Q1"), 600)
}

func TestIngestMalformedTaxonomy(t *testing.T) {
	s := taxonomy.NewStore()
	s.AddNode(10, 11, "no rank")
	s.AddNode(11, 10, "no rank")
	a := NewAggregator(s, metazoa, 0)

	_, err := a.Ingest(testHit("Q1", "10", 50, 1e-10, 1))
	assert.ErrorIs(t, err, taxonomy.ErrMalformedTaxonomy)
}

func TestQueriesFirstSeenOrder(t *testing.T) {
	a := NewAggregator(newTestStore(), metazoa, 0)

	for i, q := range []string{"Q2", "Q1", "Q2", "Q3"} {
		_, err := a.Ingest(testHit(q, "562", 50, 1e-10, i+1))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"Q2", "Q1", "Q3"}, a.Queries())
}

func TestRejectCountsTotal(t *testing.T) {
	c := RejectCounts{InvalidTaxid: 1, UnknownParent: 2, SkippedTaxon: 3, Unassigned: 4}
	assert.Equal(t, 10, c.Total())
}

func TestRejectReasonString(t *testing.T) {
	assert.Equal(t, "invalid_taxid", RejectInvalidTaxid.String())
	assert.Equal(t, "unknown_parent", RejectUnknownParent.String())
	assert.Equal(t, "skipped_taxon", RejectSkippedTaxon.String())
	assert.Equal(t, "unassigned", RejectUnassigned.String())
	assert.Equal(t, "none", RejectNone.String())
}
