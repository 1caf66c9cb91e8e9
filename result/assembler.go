package result

import (
	"errors"
	"fmt"
	"reflect"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/eddumelendez/cloud-spanner-go/codecs"
)

// ErrProtocol is reported when the chunk sequence violates the streaming
// contract: missing or diverging metadata, an illegal fragment merge, or
// a truncated stream.
var ErrProtocol = errors.New("protocol error")

// Assembler turns an ordered sequence of partial result sets into
// complete rows. It owns a value buffer and at most one pending fragment
// carried over from the previous chunk; it holds no cursor beyond the
// current stream, so restarting means re-issuing the stream with a fresh
// Assembler.
//
// An Assembler is used by a single stream and is not safe for concurrent
// use; independent streams each get their own.
type Assembler struct {
	codecs  codecs.Codecs
	rowType *sppb.StructType
	targets []reflect.Type
	buffer  []*structpb.Value
	pending *structpb.Value

	started      bool
	rowsAffected int64
	hasStats     bool
}

func NewAssembler(c codecs.Codecs) *Assembler {
	return &Assembler{
		codecs: c,
	}
}

// Append consumes the next chunk in arrival order and returns the rows it
// completed, in order. Any error is terminal for the stream: buffered
// state is no longer meaningful and no partial row has been emitted.
func (a *Assembler) Append(chunk *sppb.PartialResultSet) ([]*Row, error) {
	if err := a.observeMetadata(chunk.GetMetadata()); err != nil {
		return nil, err
	}

	values := chunk.GetValues()

	if a.pending != nil && len(values) > 0 {
		merged, err := mergeValues(a.pending, values[0])

		if err != nil {
			return nil, err
		}

		rest := values[1:]
		values = append([]*structpb.Value{merged}, rest...)
		a.pending = nil
	}

	if chunk.GetChunkedValue() {
		if len(values) > 0 {
			a.pending = values[len(values)-1]
			values = values[:len(values)-1]
		} else if a.pending == nil {
			return nil, fmt.Errorf("chunked_value set on a chunk with no values: %w", ErrProtocol)
		}
	}

	a.buffer = append(a.buffer, values...)

	if stats := chunk.GetStats(); stats != nil {
		a.observeStats(stats)
	}

	return a.sliceRows()
}

// Complete checks that the stream ended on a row boundary. A pending
// fragment or a leftover buffer shorter than one row means the server
// truncated the stream.
func (a *Assembler) Complete() error {
	if a.pending != nil {
		return fmt.Errorf("stream ended with an unmerged value fragment: %w", ErrProtocol)
	}

	if len(a.buffer) > 0 {
		return fmt.Errorf("stream ended with %d values buffered, not a whole row: %w",
			len(a.buffer), ErrProtocol)
	}

	return nil
}

// RowsAffected reports the DML row count from the result set stats, if
// the stream carried one.
func (a *Assembler) RowsAffected() (int64, bool) {
	return a.rowsAffected, a.hasStats
}

// Columns returns the column names from the stream metadata, available
// once the first chunk has been consumed.
func (a *Assembler) Columns() []string {
	fields := a.rowType.GetFields()
	columns := make([]string, len(fields))

	for i, field := range fields {
		columns[i] = field.GetName()
	}

	return columns
}

func (a *Assembler) observeMetadata(metadata *sppb.ResultSetMetadata) error {
	if !a.started {
		if metadata == nil {
			return fmt.Errorf("first chunk carries no result set metadata: %w", ErrProtocol)
		}

		a.started = true
		a.rowType = metadata.GetRowType()
		a.targets = make([]reflect.Type, len(a.rowType.GetFields()))

		for i, field := range a.rowType.GetFields() {
			a.targets[i] = codecs.NativeType(field.GetType())
		}

		return nil
	}

	// Servers may repeat identical metadata; anything different breaks
	// the fixed-column-types invariant.
	if metadata != nil && !proto.Equal(metadata.GetRowType(), a.rowType) {
		return fmt.Errorf("metadata changed mid-stream: %w", ErrProtocol)
	}

	return nil
}

func (a *Assembler) observeStats(stats *sppb.ResultSetStats) {
	switch count := stats.GetRowCount().(type) {
	case *sppb.ResultSetStats_RowCountExact:
		a.rowsAffected = count.RowCountExact
		a.hasStats = true
	case *sppb.ResultSetStats_RowCountLowerBound:
		a.rowsAffected = count.RowCountLowerBound
		a.hasStats = true
	}
}

func (a *Assembler) sliceRows() ([]*Row, error) {
	fields := a.rowType.GetFields()
	arity := len(fields)

	if arity == 0 {
		if len(a.buffer) > 0 {
			return nil, fmt.Errorf("received %d values for a result set with no columns: %w",
				len(a.buffer), ErrProtocol)
		}

		return nil, nil
	}

	var rows []*Row

	for len(a.buffer) >= arity {
		group := a.buffer[:arity]
		a.buffer = a.buffer[arity:]

		values := make([]any, arity)

		for i, wireValue := range group {
			decoded, err := a.codecs.Decode(wireValue, fields[i].GetType(), a.targets[i])

			if err != nil {
				return nil, fmt.Errorf("column %q: %w", fields[i].GetName(), err)
			}

			values[i] = decoded
		}

		rows = append(rows, &Row{fields: fields, values: values})
	}

	return rows, nil
}
