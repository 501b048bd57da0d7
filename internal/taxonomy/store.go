// Package taxonomy provides an in-memory NCBI taxonomy lookup and the
// ancestor-walk classification used to call hits ingroup or outgroup.
package taxonomy

// Store holds the taxonomy tables built once at startup: taxid to parent
// taxid, taxid to rank, and taxid to scientific name. It is read-only after
// loading and safe for concurrent lookups.
type Store struct {
	parents map[int]int
	ranks   map[int]string
	names   map[int]string
}

// NewStore creates an empty taxonomy store.
func NewStore() *Store {
	return &Store{
		parents: make(map[int]int),
		ranks:   make(map[int]string),
		names:   make(map[int]string),
	}
}

// AddNode registers a taxon with its parent and rank.
func (s *Store) AddNode(id, parentID int, rank string) {
	s.parents[id] = parentID
	if rank != "" {
		s.ranks[id] = rank
	}
}

// AddName registers the scientific name for a taxon.
func (s *Store) AddName(id int, name string) {
	s.names[id] = name
}

// Redirect maps a merged (retired) taxid onto its replacement. The old id
// becomes a direct child of the new id, so every ancestor walk through it
// behaves as if the merge never happened.
func (s *Store) Redirect(oldID, newID int) {
	s.parents[oldID] = newID
}

// Parent returns the parent taxid. The second return value is false for
// taxids absent from every loaded table; callers must treat that as a skip
// condition, never as an outgroup default.
func (s *Store) Parent(id int) (int, bool) {
	p, ok := s.parents[id]
	return p, ok
}

// Rank returns the rank of a taxon, or "" if unknown.
func (s *Store) Rank(id int) string {
	return s.ranks[id]
}

// Name returns the scientific name of a taxon, or "" if unknown.
func (s *Store) Name(id int) string {
	return s.names[id]
}

// Len returns the number of taxa with a parent entry. It bounds the ancestor
// walk: no acyclic chain can be longer than the node count.
func (s *Store) Len() int {
	return len(s.parents)
}
