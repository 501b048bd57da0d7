package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsbio/hgtscan/internal/taxonomy"
)

func TestDecideCandidate(t *testing.T) {
	sel := Selector{HUThreshold: 30, SupportThreshold: 90}

	r := &Result{
		HU:              50,
		WinningCategory: taxonomy.Outgroup,
		Support:         95,
		SupportDefined:  true,
	}
	assert.True(t, sel.Decide(r).Candidate)
}

func TestDecideRejections(t *testing.T) {
	sel := Selector{HUThreshold: 30, SupportThreshold: 90}

	tests := []struct {
		name string
		r    Result
	}{
		{"hU below threshold", Result{HU: 29.9, WinningCategory: taxonomy.Outgroup, Support: 95, SupportDefined: true}},
		{"ingroup wins", Result{HU: 50, WinningCategory: taxonomy.Ingroup, Support: 95, SupportDefined: true}},
		{"support below threshold", Result{HU: 50, WinningCategory: taxonomy.Outgroup, Support: 89.9, SupportDefined: true}},
		{"support undefined", Result{HU: 50, WinningCategory: taxonomy.Outgroup}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, sel.Decide(&tt.r).Candidate)
		})
	}
}

func TestDecideThresholdInclusive(t *testing.T) {
	sel := Selector{HUThreshold: 30, SupportThreshold: 90}

	r := &Result{HU: 30, WinningCategory: taxonomy.Outgroup, Support: 90, SupportDefined: true}
	assert.True(t, sel.Decide(r).Candidate)
}

// End-to-end over the whole pipeline: three hits for one query, outgroup
// winning on hU but missing the support threshold, so no candidate call.
func TestPipelineSupportBlocksCandidate(t *testing.T) {
	a := NewAggregator(newTestStore(), metazoa, 0)

	inputs := []struct {
		taxon    string
		bitscore float64
		evalue   float64
	}{
		{"7227", 100, 1e-20},
		{"562", 150, 1e-30},
		{"4932", 10, 1e-5},
	}
	for i, in := range inputs {
		reason, err := a.Ingest(testHit("Q1", in.taxon, in.bitscore, in.evalue, i+1))
		require.NoError(t, err)
		require.Equal(t, RejectNone, reason)
	}

	e := NewEngine(newTestStore(), metazoa)
	r, err := e.Score("Q1", a.Evidence("Q1"))
	require.NoError(t, err)

	assert.Equal(t, 50.0, r.HU)
	assert.Equal(t, taxonomy.Outgroup, r.WinningCategory)
	assert.InDelta(t, 100.0*2.0/3.0, r.Support, 0.01)

	sel := Selector{HUThreshold: 30, SupportThreshold: 90}
	d := sel.Decide(r)
	assert.False(t, d.Candidate)

	var st Stats
	st.Record(d, sel)
	assert.Equal(t, 1, st.Queries)
	assert.Equal(t, 1, st.HUPass)
	assert.Equal(t, 1, st.OutgroupWins)
	assert.Equal(t, 0, st.OutgroupSupported)
	assert.Equal(t, 0, st.Candidates)
}

func TestStatsRecord(t *testing.T) {
	sel := Selector{HUThreshold: 30, SupportThreshold: 90}
	var st Stats

	decisions := []Decision{
		sel.Decide(&Result{HU: 50, AI: 40, WinningCategory: taxonomy.Outgroup, Support: 95, SupportDefined: true}),
		sel.Decide(&Result{HU: -10, AI: -5, WinningCategory: taxonomy.Ingroup, Support: 100, SupportDefined: true}),
		sel.Decide(&Result{HU: 35, AI: 10, WinningCategory: taxonomy.Outgroup, Support: 50, SupportDefined: true}),
	}
	for _, d := range decisions {
		st.Record(d, sel)
	}

	assert.Equal(t, 3, st.Queries)
	assert.Equal(t, 2, st.HUPass)
	assert.Equal(t, 1, st.AIPass)
	assert.Equal(t, 1, st.IngroupWins)
	assert.Equal(t, 2, st.OutgroupWins)
	assert.Equal(t, 1, st.IngroupSupported)
	assert.Equal(t, 1, st.OutgroupSupported)
	assert.Equal(t, 1, st.Candidates)
}
