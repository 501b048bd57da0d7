package taxonomy

import (
	"errors"
	"strings"
)

// Category is the position of a taxon relative to a threshold clade.
type Category int

const (
	// Unassigned means the lineage cannot be resolved: the taxid has no
	// parent entry, or its ancestry runs through one of the reserved
	// unidentified/unclassified nodes.
	Unassigned Category = iota
	// Ingroup means the threshold taxon is an ancestor of the taxon.
	Ingroup
	// Outgroup means the walk reached the taxonomic root without passing
	// through the threshold taxon.
	Outgroup
)

func (c Category) String() string {
	switch c {
	case Ingroup:
		return "ingroup"
	case Outgroup:
		return "outgroup"
	default:
		return "unassigned"
	}
}

// Reserved NCBI taxids whose subtrees carry no usable lineage.
const (
	taxRoot         = 1
	taxUnidentified = 32644 // "unidentified"
	taxUnclassified = 12908 // "unclassified sequences"
)

// ErrMalformedTaxonomy reports an ancestor chain longer than the node count,
// which can only happen when the parent table contains a cycle.
var ErrMalformedTaxonomy = errors.New("taxonomy: ancestor chain does not terminate (cyclic parent table)")

// undefRank is the placeholder emitted for lineage ranks never observed.
const undefRank = "undef"

// Classifier resolves taxa against the taxonomy tree.
type Classifier struct {
	store *Store
}

// NewClassifier creates a classifier over the given store.
func NewClassifier(store *Store) *Classifier {
	return &Classifier{store: store}
}

// Classify walks the ancestor chain of taxID and reports where it sits
// relative to thresholdID. The walk starts at the parent of taxID, so a
// taxon is ingroup when the threshold is a proper ancestor. The iteration
// count is bounded by the store size; exceeding it returns
// ErrMalformedTaxonomy instead of looping forever.
func (c *Classifier) Classify(taxID, thresholdID int) (Category, error) {
	parent, ok := c.store.Parent(taxID)
	if !ok {
		return Unassigned, nil
	}

	for steps := 0; steps <= c.store.Len(); steps++ {
		switch parent {
		case thresholdID:
			return Ingroup, nil
		case taxRoot:
			return Outgroup, nil
		case taxUnidentified, taxUnclassified:
			return Unassigned, nil
		}

		parent, ok = c.store.Parent(parent)
		if !ok {
			return Unassigned, nil
		}
	}

	return Unassigned, ErrMalformedTaxonomy
}

// Lineage walks the ancestor chain of taxID and returns the first-seen names
// at the superkingdom, kingdom and phylum ranks, joined as
// "superkingdom;kingdom;phylum". Ranks never observed report "undef".
// Whitespace inside names is replaced with underscores. The walk stops at the
// superkingdom rank or the root, whichever comes first.
func (c *Classifier) Lineage(taxID int) (string, error) {
	superkingdom, kingdom, phylum := undefRank, undefRank, undefRank

	id := taxID
	for steps := 0; steps <= c.store.Len(); steps++ {
		switch c.store.Rank(id) {
		case "phylum":
			if phylum == undefRank {
				phylum = lineageName(c.store.Name(id))
			}
		case "kingdom":
			if kingdom == undefRank {
				kingdom = lineageName(c.store.Name(id))
			}
		case "superkingdom":
			if superkingdom == undefRank {
				superkingdom = lineageName(c.store.Name(id))
			}
			return superkingdom + ";" + kingdom + ";" + phylum, nil
		}

		if id == taxRoot {
			return superkingdom + ";" + kingdom + ";" + phylum, nil
		}
		parent, ok := c.store.Parent(id)
		if !ok {
			return superkingdom + ";" + kingdom + ";" + phylum, nil
		}
		id = parent
	}

	return "", ErrMalformedTaxonomy
}

// lineageName normalizes a scientific name for the lineage string.
func lineageName(name string) string {
	if name == "" {
		return undefRank
	}
	return strings.Join(strings.Fields(name), "_")
}
