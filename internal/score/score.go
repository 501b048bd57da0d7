package score

import (
	"math"
	"sort"

	"github.com/omicsbio/hgtscan/internal/taxonomy"
)

// evaluePseudocount keeps the Alien Index finite for e-values of zero.
const evaluePseudocount = 1e-200

// Neutral defaults for queries lacking hits in a category.
const (
	defaultBestEvalue   = 1.0
	defaultBestBitscore = 0.0
)

// Result holds the per-query HGT evidence scores.
type Result struct {
	QueryID string

	// HU is the HGT Index: best outgroup bitscore minus best ingroup
	// bitscore.
	HU float64
	// AI is the Alien Index: log10 of the best ingroup e-value minus log10
	// of the best outgroup e-value.
	AI float64

	BitOut  float64
	BitIn   float64
	EvalOut float64
	EvalIn  float64

	// WinningCategory is the category with the larger total bitscore sum;
	// ties go to Outgroup.
	WinningCategory taxonomy.Category
	// Support is the Consensus Hit Support: the percentage of distinct hit
	// taxa whose own classification matches the winning category. Valid
	// only when SupportDefined is true.
	Support        float64
	SupportDefined bool

	// WinningTaxon is the taxid with the highest per-taxon bitscore sum
	// across all hit taxa; the lowest taxid wins ties.
	WinningTaxon int
	Lineage      string
}

// Engine reduces aggregated per-taxon evidence into HGT scores.
type Engine struct {
	classifier  *taxonomy.Classifier
	thresholdID int
}

// NewEngine creates a scoring engine for the given ingroup threshold.
func NewEngine(store *taxonomy.Store, thresholdID int) *Engine {
	return &Engine{classifier: taxonomy.NewClassifier(store), thresholdID: thresholdID}
}

// Score reduces one query's evidence to its HGT scores. Unassigned taxa
// never reach this point, so every taxon counts as ingroup or outgroup.
// A query with no retained evidence still scores, with neutral defaults.
func (e *Engine) Score(queryID string, ev QueryEvidence) (*Result, error) {
	r := &Result{
		QueryID: queryID,
		BitIn:   defaultBestBitscore,
		BitOut:  defaultBestBitscore,
		// Seeded with +Inf, not the no-hit default: e-values above 1 are
		// legal (BLAST reports up to its cutoff, 10 by default) and must
		// still minimize correctly. The default applies only when a
		// category has no hits at all.
		EvalIn:  math.Inf(1),
		EvalOut: math.Inf(1),
		Lineage: "undef;undef;undef",
	}

	taxa := make([]int, 0, len(ev))
	for tax := range ev {
		taxa = append(taxa, tax)
	}
	sort.Ints(taxa)

	var (
		inSum, outSum   float64
		inTaxa, outTaxa int
		bestSum         float64
		haveWinner      bool
	)

	for _, tax := range taxa {
		cat, err := e.classifier.Classify(tax, e.thresholdID)
		if err != nil {
			return nil, err
		}

		te := ev[tax]
		var taxonSum float64
		for _, b := range te.Bitscores {
			taxonSum += b
		}

		if cat == taxonomy.Ingroup {
			inTaxa++
			inSum += taxonSum
			for _, b := range te.Bitscores {
				if b > r.BitIn {
					r.BitIn = b
				}
			}
			for _, v := range te.Evalues {
				if v < r.EvalIn {
					r.EvalIn = v
				}
			}
		} else {
			outTaxa++
			outSum += taxonSum
			for _, b := range te.Bitscores {
				if b > r.BitOut {
					r.BitOut = b
				}
			}
			for _, v := range te.Evalues {
				if v < r.EvalOut {
					r.EvalOut = v
				}
			}
		}

		// Strict comparison over ascending taxids: the lowest taxid keeps
		// the win on equal sums.
		if !haveWinner || taxonSum > bestSum {
			haveWinner = true
			bestSum = taxonSum
			r.WinningTaxon = tax
		}
	}

	if inTaxa == 0 {
		r.EvalIn = defaultBestEvalue
	}
	if outTaxa == 0 {
		r.EvalOut = defaultBestEvalue
	}

	r.HU = r.BitOut - r.BitIn
	r.AI = math.Log10(r.EvalIn+evaluePseudocount) - math.Log10(r.EvalOut+evaluePseudocount)

	r.WinningCategory = taxonomy.Outgroup
	if inSum > outSum {
		r.WinningCategory = taxonomy.Ingroup
	}

	if n := inTaxa + outTaxa; n > 0 {
		agree := outTaxa
		if r.WinningCategory == taxonomy.Ingroup {
			agree = inTaxa
		}
		r.Support = 100 * float64(agree) / float64(n)
		r.SupportDefined = true
	}

	if haveWinner {
		lineage, err := e.classifier.Lineage(r.WinningTaxon)
		if err != nil {
			return nil, err
		}
		r.Lineage = lineage
	}

	return r, nil
}
