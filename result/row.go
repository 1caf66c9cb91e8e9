package result

import (
	"fmt"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
)

// Row is one complete result row. Values are decoded to their default
// native types and the row is immutable once emitted.
type Row struct {
	fields []*sppb.StructType_Field
	values []any
}

func (r *Row) Len() int {
	return len(r.values)
}

// Columns returns the column names in declaration order.
func (r *Row) Columns() []string {
	columns := make([]string, len(r.fields))

	for i, field := range r.fields {
		columns[i] = field.GetName()
	}

	return columns
}

func (r *Row) Get(index int) (any, error) {
	if index < 0 || index >= len(r.values) {
		return nil, fmt.Errorf("column index %d out of range [0, %d)", index, len(r.values))
	}

	return r.values[index], nil
}

func (r *Row) GetByName(name string) (any, error) {
	for i, field := range r.fields {
		if field.GetName() == name {
			return r.values[i], nil
		}
	}

	return nil, fmt.Errorf("no column named %q", name)
}

// Values returns the decoded values in column order. The returned slice
// is shared with the row and must not be modified.
func (r *Row) Values() []any {
	return r.values
}
