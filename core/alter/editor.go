package alter

import (
	"github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/schema"
)

// EditorMode distinguishes the two ways a column editor is opened.
type EditorMode int

const (
	// ModeAdd starts from an empty definition; submit emits an add.
	ModeAdd EditorMode = iota
	// ModeEdit preloads an existing column; submit emits modify, preceded
	// by a rename when the name changed.
	ModeEdit
)

// ColumnEditor is the explicit state behind the column form. The original
// name is captured once, when the editor opens, and compared against the
// working definition exactly once at submit time; there is no hidden
// callback state tracking renames.
type ColumnEditor struct {
	mode         EditorMode
	originalName string

	// Working is the definition being edited.
	Working schema.ColumnDefinition
}

// NewAddColumn opens an editor in Add mode with an empty template.
func NewAddColumn() *ColumnEditor {
	return &ColumnEditor{mode: ModeAdd, Working: schema.ColumnDefinition{IsNullable: true}}
}

// NewEditColumn opens an editor preloaded with the column's current
// definition, remembering its original name for rename detection.
func NewEditColumn(current schema.ColumnDefinition) *ColumnEditor {
	return &ColumnEditor{mode: ModeEdit, originalName: current.Name, Working: current}
}

// Mode reports how the editor was opened.
func (e *ColumnEditor) Mode() EditorMode { return e.mode }

// OriginalName returns the name the edited column had when the editor
// opened. Empty in Add mode.
func (e *ColumnEditor) OriginalName() string { return e.originalName }

// Submit turns the working definition into the ordered operations the
// caller must apply. In Add mode this is always a single add. In Edit mode
// a changed name emits a rename followed by a modify, in that order,
// because the modify payload addresses the column by its new name. An
// unchanged edit still emits the modify; no-op modifies are acceptable and
// not special-cased.
func (e *ColumnEditor) Submit() ([]Operation, error) {
	if e.Working.Name == "" {
		return nil, errors.NewValidation("name", "column name is required")
	}
	if e.Working.TypeName == "" {
		return nil, errors.NewValidation("type_name", "column type is required")
	}

	if e.mode == ModeAdd {
		return []Operation{Add(e.Working)}, nil
	}

	ops := make([]Operation, 0, 2)
	if e.Working.Name != e.originalName {
		ops = append(ops, Rename(e.originalName, e.Working.Name))
	}
	ops = append(ops, Modify(e.Working.Name, e.Working))
	return ops, nil
}

// IndexEditor is the state behind the add-index form.
type IndexEditor struct {
	// Working is the index definition being edited.
	Working schema.IndexDefinition
}

// NewAddIndex opens a fresh index form.
func NewAddIndex() *IndexEditor { return &IndexEditor{} }

// Submit validates the working definition and emits the add-index
// operation.
func (e *IndexEditor) Submit() (Operation, error) {
	if e.Working.Name == "" {
		return Operation{}, errors.NewValidation("name", "index name is required")
	}
	if len(e.Working.Columns) == 0 {
		return Operation{}, errors.NewValidation("columns", "index needs at least one column")
	}
	return AddIndex(e.Working), nil
}

// DropEligible reports whether an index may be submitted for drop.
// Primary-key-backed indexes are excluded: dropping them would strip the
// table's row identity out from under every mutation path.
func DropEligible(idx schema.IndexDefinition) bool {
	return !idx.IsPK
}

// SubmitDropIndex validates drop eligibility and emits the drop-index
// operation.
func SubmitDropIndex(idx schema.IndexDefinition) (Operation, error) {
	if !DropEligible(idx) {
		return Operation{}, errors.NewValidation("index", "primary key indexes cannot be dropped")
	}
	return DropIndex(idx.Name), nil
}
