package domain

// TabularFile is the column listing the backend returns for one uploaded CSV file.
type TabularFile struct {
	Filename string
	Columns  []string
}

// ColumnPartition is the content/metadata split of one tabular file as sent
// to the backend before index creation.
type ColumnPartition struct {
	Filename string
	Columns  []string
	Content  []string
	Metadata []string
}

// ColumnSpec holds the columns of a tabular file and the subset of them marked
// as content. Every column outside that subset is metadata.
type ColumnSpec struct {
	Filename string
	columns  []string
	content  map[string]struct{}
}

// NewColumnSpec builds a spec with every column marked as content.
func NewColumnSpec(filename string, columns []string) *ColumnSpec {
	s := &ColumnSpec{
		Filename: filename,
		columns:  make([]string, 0, len(columns)),
		content:  make(map[string]struct{}, len(columns)),
	}
	for _, c := range columns {
		if _, dup := s.content[c]; dup {
			continue
		}
		s.columns = append(s.columns, c)
		s.content[c] = struct{}{}
	}
	return s
}

// Columns returns the full ordered column list.
func (s *ColumnSpec) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Has reports whether column belongs to the file.
func (s *ColumnSpec) Has(column string) bool {
	for _, c := range s.columns {
		if c == column {
			return true
		}
	}
	return false
}

// IsContent reports whether column is currently marked as content.
func (s *ColumnSpec) IsContent(column string) bool {
	_, ok := s.content[column]
	return ok
}

// Toggle moves column between content and metadata.
func (s *ColumnSpec) Toggle(column string) error {
	if !s.Has(column) {
		return ErrUnknownColumn
	}
	if s.IsContent(column) {
		delete(s.content, column)
	} else {
		s.content[column] = struct{}{}
	}
	return nil
}

// Content returns the content columns in column order.
func (s *ColumnSpec) Content() []string {
	out := make([]string, 0, len(s.content))
	for _, c := range s.columns {
		if s.IsContent(c) {
			out = append(out, c)
		}
	}
	return out
}

// Metadata returns the metadata columns in column order.
func (s *ColumnSpec) Metadata() []string {
	out := make([]string, 0, len(s.columns)-len(s.content))
	for _, c := range s.columns {
		if !s.IsContent(c) {
			out = append(out, c)
		}
	}
	return out
}

// Partition returns the split for transport.
func (s *ColumnSpec) Partition() ColumnPartition {
	return ColumnPartition{
		Filename: s.Filename,
		Columns:  s.Columns(),
		Content:  s.Content(),
		Metadata: s.Metadata(),
	}
}

// ColumnSpecs is the filename-keyed collection of column specs. Insertion
// order is kept for display; a repeated filename replaces the earlier entry.
type ColumnSpecs struct {
	order  []string
	byName map[string]*ColumnSpec
}

// NewColumnSpecs returns an empty collection.
func NewColumnSpecs() *ColumnSpecs {
	return &ColumnSpecs{byName: make(map[string]*ColumnSpec)}
}

// Put stores spec under its filename.
func (c *ColumnSpecs) Put(spec *ColumnSpec) {
	if _, ok := c.byName[spec.Filename]; !ok {
		c.order = append(c.order, spec.Filename)
	}
	c.byName[spec.Filename] = spec
}

// Get returns the spec for filename.
func (c *ColumnSpecs) Get(filename string) (*ColumnSpec, bool) {
	s, ok := c.byName[filename]
	return s, ok
}

// Toggle flips column of filename between content and metadata.
func (c *ColumnSpecs) Toggle(filename, column string) error {
	s, ok := c.byName[filename]
	if !ok {
		return ErrUnknownColumn
	}
	return s.Toggle(column)
}

// Len returns the number of tabular files.
func (c *ColumnSpecs) Len() int { return len(c.order) }

// Specs returns the specs in insertion order.
func (c *ColumnSpecs) Specs() []*ColumnSpec {
	out := make([]*ColumnSpec, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Partition returns the content/metadata split of every file.
func (c *ColumnSpecs) Partition() []ColumnPartition {
	out := make([]ColumnPartition, 0, len(c.order))
	for _, s := range c.Specs() {
		out = append(out, s.Partition())
	}
	return out
}

// Reset removes every spec.
func (c *ColumnSpecs) Reset() {
	c.order = nil
	c.byName = make(map[string]*ColumnSpec)
}
