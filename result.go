package spanner

import (
	"context"
	"io"

	"github.com/eddumelendez/cloud-spanner-go/client"
	"github.com/eddumelendez/cloud-spanner-go/result"
)

// Result is the lazy row sequence of one statement execution. Rows are
// pulled on demand: each underlying chunk is fetched only when the
// buffered rows run out, and one credit is granted per fetch, so the
// server is never asked for more than the consumer reads.
//
// A Result is consumed by a single goroutine.
type Result struct {
	stream    *client.ChunkStream
	assembler *result.Assembler
	buffered  []*result.Row
	done      bool
	err       error
}

func newResult(stream *client.ChunkStream, assembler *result.Assembler) *Result {
	return &Result{
		stream:    stream,
		assembler: assembler,
	}
}

// Next returns the next row in result order, io.EOF after the last one,
// or the terminal error. Once an error other than io.EOF is returned,
// the result is finished and no further row is emitted.
func (r *Result) Next(ctx context.Context) (*result.Row, error) {
	if r.err != nil {
		return nil, r.err
	}

	for len(r.buffered) == 0 && !r.done {
		if err := r.fetch(ctx); err != nil {
			return nil, err
		}
	}

	if len(r.buffered) == 0 {
		return nil, io.EOF
	}

	row := r.buffered[0]
	r.buffered = r.buffered[1:]

	return row, nil
}

// fetch pulls exactly one chunk from the stream.
func (r *Result) fetch(ctx context.Context) error {
	r.stream.Request(1)

	chunk, err := r.stream.Recv(ctx)

	if err == io.EOF {
		r.done = true

		if err := r.assembler.Complete(); err != nil {
			r.err = err
			return err
		}

		return nil
	}

	if err != nil {
		r.err = err
		return err
	}

	rows, err := r.assembler.Append(chunk)

	if err != nil {
		r.err = err
		r.stream.Cancel()

		return err
	}

	r.buffered = append(r.buffered, rows...)

	return nil
}

// Columns returns the column names, fetching the first chunk if the
// stream has not produced it yet.
func (r *Result) Columns(ctx context.Context) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}

	if len(r.buffered) == 0 && !r.done && len(r.assembler.Columns()) == 0 {
		if err := r.fetch(ctx); err != nil {
			return nil, err
		}
	}

	return r.assembler.Columns(), nil
}

// Discard drains the remaining rows and returns the DML rows-affected
// count, zero for queries that report none.
func (r *Result) Discard(ctx context.Context) (int64, error) {
	for {
		_, err := r.Next(ctx)

		if err == io.EOF {
			break
		}

		if err != nil {
			return 0, err
		}
	}

	affected, _ := r.assembler.RowsAffected()

	return affected, nil
}

// Stop cancels the underlying stream. It is safe to call at any point
// and more than once; no further rows are emitted afterwards.
func (r *Result) Stop() {
	r.stream.Cancel()
}
