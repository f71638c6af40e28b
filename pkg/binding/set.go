package binding

type inputEntry struct {
	col      *Column
	explicit string
	optional bool
}

// InputSet is an ordered collection of columns bound for reading.
type InputSet struct {
	entries []inputEntry
}

// NewInputSet creates an empty input set.
func NewInputSet() *InputSet {
	return &InputSet{}
}

// Add registers c. Optional columns may be missing from the input.
func (s *InputSet) Add(c *Column, optional bool) *Column {
	return s.AddNamed(c, "", optional)
}

// AddNamed registers c with an explicit physical name tried before its candidates.
func (s *InputSet) AddNamed(c *Column, explicit string, optional bool) *Column {
	s.entries = append(s.entries, inputEntry{col: c, explicit: explicit, optional: optional})
	return c
}

// BindRead binds every column in order, stopping at the first required
// column that cannot be found.
func (s *InputSet) BindRead(r ReadCursor) error {
	for _, e := range s.entries {
		if err := e.col.BindRead(r, e.explicit, e.optional); err != nil {
			return err
		}
	}
	return nil
}

// Clear resets every column.
func (s *InputSet) Clear() {
	for _, e := range s.entries {
		e.col.Clear()
	}
}

// Columns returns the registered columns in order.
func (s *InputSet) Columns() []*Column {
	out := make([]*Column, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.col
	}
	return out
}

// Len returns the number of registered columns.
func (s *InputSet) Len() int { return len(s.entries) }

type outputEntry struct {
	col      *Column
	explicit string
	level    int
}

// OutputSet is an ordered collection of columns bound for writing, each
// with an output level.
type OutputSet struct {
	entries []outputEntry
}

// NewOutputSet creates an empty output set.
func NewOutputSet() *OutputSet {
	return &OutputSet{}
}

// Add registers c at level.
func (s *OutputSet) Add(c *Column, level int) *Column {
	return s.AddNamed(c, "", level)
}

// AddNamed registers c at level, written under explicit instead of its primary name.
func (s *OutputSet) AddNamed(c *Column, explicit string, level int) *Column {
	s.entries = append(s.entries, outputEntry{col: c, explicit: explicit, level: level})
	return c
}

// BindWrite creates output columns for every registered column with
// level <= maxLevel. It returns the number of columns bound.
func (s *OutputSet) BindWrite(w WriteCursor, maxLevel int) (int, error) {
	n := 0
	for _, e := range s.entries {
		if e.level > maxLevel {
			continue
		}
		if err := e.col.BindWrite(w, e.explicit); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Clear resets every column.
func (s *OutputSet) Clear() {
	for _, e := range s.entries {
		e.col.Clear()
	}
}

// Columns returns the registered columns in order.
func (s *OutputSet) Columns() []*Column {
	out := make([]*Column, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.col
	}
	return out
}

// Len returns the number of registered columns.
func (s *OutputSet) Len() int { return len(s.entries) }
