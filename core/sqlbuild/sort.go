package sqlbuild

// Direction is a sort direction.
type Direction int

const (
	// DirectionNone means no explicit ordering.
	DirectionNone Direction = iota
	// DirectionAscending sorts ascending.
	DirectionAscending
	// DirectionDescending sorts descending.
	DirectionDescending
)

func (d Direction) String() string {
	switch d {
	case DirectionAscending:
		return "ASC"
	case DirectionDescending:
		return "DESC"
	default:
		return ""
	}
}

// SortState tracks the active sort column and direction. The invariant
// direction==None implies column=="" always holds: clearing the direction
// clears the column.
//
// The state machine does not cycle directions itself; the caller reports the
// desired direction with each toggle and Apply records it.
type SortState struct {
	column    string
	direction Direction
}

// Apply records a sort toggle. Passing DirectionNone (or an empty column)
// transitions back to the unsorted state, clearing the column. It returns
// true when the state changed, which callers use to reset pagination.
func (s *SortState) Apply(column string, direction Direction) bool {
	if direction == DirectionNone || column == "" {
		changed := s.direction != DirectionNone || s.column != ""
		s.column = ""
		s.direction = DirectionNone
		return changed
	}
	changed := s.column != column || s.direction != direction
	s.column = column
	s.direction = direction
	return changed
}

// Clear resets the state to unsorted.
func (s *SortState) Clear() { s.Apply("", DirectionNone) }

// Active reports whether an explicit ordering is in effect.
func (s *SortState) Active() bool { return s.direction != DirectionNone }

// Column returns the sort column, or "" when unsorted.
func (s *SortState) Column() string { return s.column }

// Direction returns the sort direction.
func (s *SortState) Direction() Direction { return s.direction }

// PageState tracks the 1-based page number and page size of the visible
// window.
type PageState struct {
	// Page is 1-based and never below 1.
	Page int
	// PageSize is the number of rows per page and must be positive.
	PageSize int
}

// NewPageState returns a PageState clamped to valid values.
func NewPageState(page, pageSize int) PageState {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return PageState{Page: page, PageSize: pageSize}
}

const defaultPageSize = 50

// Offset returns the number of rows preceding the current page.
func (p PageState) Offset() int { return (p.Page - 1) * p.PageSize }

// Reset returns to the first page, keeping the page size. Any sort-state
// change invalidates the previous pagination window, so callers reset the
// page whenever the ordering changes.
func (p *PageState) Reset() { p.Page = 1 }
