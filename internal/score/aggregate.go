// Package score turns streams of taxonomically annotated similarity-search
// hits into per-query HGT evidence scores and candidate decisions.
package score

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/omicsbio/hgtscan/internal/hits"
	"github.com/omicsbio/hgtscan/internal/taxonomy"
)

// RejectReason explains why a hit was excluded from scoring.
type RejectReason int

const (
	// RejectNone means the hit was accepted.
	RejectNone RejectReason = iota
	// RejectInvalidTaxid means the taxid token is not a positive integer.
	RejectInvalidTaxid
	// RejectUnknownParent means the taxid resolves nowhere in the taxonomy.
	RejectUnknownParent
	// RejectSkippedTaxon means the hit falls inside the excluded clade
	// (typically the query organism's own phylum).
	RejectSkippedTaxon
	// RejectUnassigned means the taxon classifies as neither ingroup nor
	// outgroup relative to the threshold clade.
	RejectUnassigned
)

func (r RejectReason) String() string {
	switch r {
	case RejectInvalidTaxid:
		return "invalid_taxid"
	case RejectUnknownParent:
		return "unknown_parent"
	case RejectSkippedTaxon:
		return "skipped_taxon"
	case RejectUnassigned:
		return "unassigned"
	default:
		return "none"
	}
}

// TaxonEvidence accumulates the scores of every hit of one query against one
// taxon.
type TaxonEvidence struct {
	Bitscores []float64
	Evalues   []float64
}

// QueryEvidence maps taxid to the evidence gathered for one query.
type QueryEvidence map[int]*TaxonEvidence

// RejectCounts tallies excluded hits by reason.
type RejectCounts struct {
	InvalidTaxid  int
	UnknownParent int
	SkippedTaxon  int
	Unassigned    int
}

// Total returns the number of rejected hits.
func (c RejectCounts) Total() int {
	return c.InvalidTaxid + c.UnknownParent + c.SkippedTaxon + c.Unassigned
}

// Aggregator filters hits through the lineage classifier and accumulates
// per-query, per-taxon score lists. It is the only mutable structure of a
// run; once ingestion finishes the evidence is read-only.
type Aggregator struct {
	store       *taxonomy.Store
	classifier  *taxonomy.Classifier
	thresholdID int
	skipID      int

	evidence map[string]QueryEvidence
	order    []string
	rejects  RejectCounts
	accepted int
	logger   *zap.Logger
}

// NewAggregator creates an aggregator. thresholdID defines the ingroup
// clade; skipID, when non-zero, excludes hits inside that clade entirely.
func NewAggregator(store *taxonomy.Store, thresholdID, skipID int) *Aggregator {
	return &Aggregator{
		store:       store,
		classifier:  taxonomy.NewClassifier(store),
		thresholdID: thresholdID,
		skipID:      skipID,
		evidence:    make(map[string]QueryEvidence),
		logger:      zap.NewNop(),
	}
}

// SetLogger sets the logger for per-hit rejection warnings.
func (a *Aggregator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// Ingest filters one hit and, when it survives, appends its bitscore and
// e-value under the (query, taxon) pair. The returned reason is RejectNone
// for accepted hits. A non-nil error means the taxonomy itself is malformed
// and the run cannot continue.
func (a *Aggregator) Ingest(h *hits.Hit) (RejectReason, error) {
	// Every query seen gets a result row, even when all of its hits are
	// rejected: downstream must be able to tell "no evidence" from
	// "strong ingroup evidence".
	qe := a.query(h.QueryID)

	taxID, err := strconv.Atoi(h.TaxonRaw)
	if err != nil || taxID <= 0 {
		a.reject(h, RejectInvalidTaxid)
		a.rejects.InvalidTaxid++
		return RejectInvalidTaxid, nil
	}

	if _, ok := a.store.Parent(taxID); !ok {
		a.reject(h, RejectUnknownParent)
		a.rejects.UnknownParent++
		return RejectUnknownParent, nil
	}

	if a.skipID != 0 {
		cat, err := a.classifier.Classify(taxID, a.skipID)
		if err != nil {
			return RejectNone, err
		}
		if cat == taxonomy.Ingroup {
			a.reject(h, RejectSkippedTaxon)
			a.rejects.SkippedTaxon++
			return RejectSkippedTaxon, nil
		}
	}

	cat, err := a.classifier.Classify(taxID, a.thresholdID)
	if err != nil {
		return RejectNone, err
	}
	if cat == taxonomy.Unassigned {
		a.reject(h, RejectUnassigned)
		a.rejects.Unassigned++
		return RejectUnassigned, nil
	}

	te, ok := qe[taxID]
	if !ok {
		te = &TaxonEvidence{}
		qe[taxID] = te
	}
	te.Bitscores = append(te.Bitscores, h.Bitscore)
	te.Evalues = append(te.Evalues, h.Evalue)
	a.accepted++

	return RejectNone, nil
}

// query returns the evidence map for a query, registering it on first sight.
func (a *Aggregator) query(queryID string) QueryEvidence {
	qe, ok := a.evidence[queryID]
	if !ok {
		qe = make(QueryEvidence)
		a.evidence[queryID] = qe
		a.order = append(a.order, queryID)
	}
	return qe
}

func (a *Aggregator) reject(h *hits.Hit, reason RejectReason) {
	a.logger.Warn("hit excluded",
		zap.String("query", h.QueryID),
		zap.Int("line", h.Line),
		zap.String("taxid", h.TaxonRaw),
		zap.String("reason", reason.String()))
}

// Queries returns the query IDs in first-seen order.
func (a *Aggregator) Queries() []string {
	return a.order
}

// Evidence returns the accumulated evidence for one query.
func (a *Aggregator) Evidence(queryID string) QueryEvidence {
	return a.evidence[queryID]
}

// Rejects returns the rejection tallies.
func (a *Aggregator) Rejects() RejectCounts {
	return a.rejects
}

// Accepted returns the number of hits retained for scoring.
func (a *Aggregator) Accepted() int {
	return a.accepted
}
