package locality

// BoundQuery fixes a reference point set and a radius window over a Query so
// that worker threads can pull one reference's neighbor set at a time. It is
// safe for concurrent use: each call writes only into the buffer it is
// handed.
type BoundQuery struct {
	Query       *Query
	RefPoints   [][3]float64
	RMin, RMax  float64
	ExcludeSelf bool
}

// Neighbors gathers the neighbor set of reference point ref into buf and
// returns it.
func (s *BoundQuery) Neighbors(ref int, buf []Neighbor) ([]Neighbor, error) {
	buf = buf[:0]
	err := s.Query.Neighbors(
		ref, s.RefPoints[ref], s.RMin, s.RMax, s.ExcludeSelf,
		func(n Neighbor) error {
			buf = append(buf, n)
			return nil
		},
	)
	return buf, err
}

// ListSource serves per-reference spans of a prebuilt NeighborList.
type ListSource struct {
	list NeighborList
	seg  []int
}

// NewListSource indexes list by reference point so each reference's pairs
// can be served in O(1).
func NewListSource(list NeighborList, nRef int) *ListSource {
	return &ListSource{list: list, seg: list.Segments(nRef)}
}

// Neighbors returns the pairs whose reference index is ref. The returned
// slice aliases the underlying list and must not be modified.
func (s *ListSource) Neighbors(ref int, _ []Neighbor) ([]Neighbor, error) {
	return s.list[s.seg[ref]:s.seg[ref+1]], nil
}
