package score

import (
	"go.uber.org/zap"

	"github.com/omicsbio/hgtscan/internal/taxonomy"
)

// Selector applies the configured thresholds to scored queries. The hU
// threshold doubles as the AI threshold: one knob, two metrics.
type Selector struct {
	HUThreshold      float64
	SupportThreshold float64
}

// Decision pairs a score with its candidacy flag.
type Decision struct {
	*Result
	Candidate bool
}

// Decide flags a query as an HGT candidate: hU at or above threshold, the
// outgroup winning, and consensus support at or above threshold.
func (s Selector) Decide(r *Result) Decision {
	candidate := r.HU >= s.HUThreshold &&
		r.WinningCategory == taxonomy.Outgroup &&
		r.SupportDefined && r.Support >= s.SupportThreshold
	return Decision{Result: r, Candidate: candidate}
}

// Stats accumulates run-level counters over all decisions. It is threaded
// explicitly through the scoring stage and returned to the caller.
type Stats struct {
	Queries           int
	HUPass            int
	AIPass            int
	IngroupWins       int
	OutgroupWins      int
	IngroupSupported  int
	OutgroupSupported int
	Candidates        int
}

// Record folds one decision into the counters.
func (st *Stats) Record(d Decision, sel Selector) {
	st.Queries++
	if d.HU >= sel.HUThreshold {
		st.HUPass++
	}
	if d.AI >= sel.HUThreshold {
		st.AIPass++
	}

	supported := d.SupportDefined && d.Support >= sel.SupportThreshold
	if d.WinningCategory == taxonomy.Ingroup {
		st.IngroupWins++
		if supported {
			st.IngroupSupported++
		}
	} else {
		st.OutgroupWins++
		if supported {
			st.OutgroupSupported++
		}
	}

	if d.Candidate {
		st.Candidates++
	}
}

// LogSummary writes the run counters to the logger.
func (st Stats) LogSummary(l *zap.Logger) {
	l.Info("scan summary",
		zap.Int("queries", st.Queries),
		zap.Int("hu_pass", st.HUPass),
		zap.Int("ai_pass", st.AIPass),
		zap.Int("ingroup_wins", st.IngroupWins),
		zap.Int("outgroup_wins", st.OutgroupWins),
		zap.Int("ingroup_supported", st.IngroupSupported),
		zap.Int("outgroup_supported", st.OutgroupSupported),
		zap.Int("candidates", st.Candidates))
}
