package client

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/grpc/status"
)

// maxRequest caps how much credit is forwarded per grant, matching the
// transport's maximum request size.
const maxRequest = math.MaxInt32

// ChunkReceiver is the receiving half of a streaming call. The
// generated Spanner_ExecuteStreamingSqlClient satisfies it.
type ChunkReceiver interface {
	Recv() (*sppb.PartialResultSet, error)
}

// ChunkStream delivers the partial result sets of one streaming
// execution under explicit demand. No chunk is pulled from the network
// until the consumer has granted credit for it, so cumulative delivery
// never exceeds cumulative demand. Exactly one RPC backs each stream.
type ChunkStream struct {
	chunks chan *sppb.PartialResultSet
	demand chan int64
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	// err is written only by the pump goroutine, before chunks closes.
	err error
}

// NewChunkStream wraps the receiving half of an already-started call.
// release runs exactly once, when the stream winds down for any reason.
func NewChunkStream(cancel context.CancelFunc, receiver ChunkReceiver, release func()) *ChunkStream {
	s := &ChunkStream{
		chunks: make(chan *sppb.PartialResultSet),
		demand: make(chan int64, 16),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go s.pump(receiver, release)

	return s
}

// pump pulls from the RPC while credit is available and hands chunks to
// the consumer over an unbuffered channel, so the network read rate is
// bounded by consumer demand.
func (s *ChunkStream) pump(receiver ChunkReceiver, release func()) {
	defer release()
	defer close(s.chunks)

	var credit int64

	for {
		for credit <= 0 {
			select {
			case grant := <-s.demand:
				credit += grant
			case <-s.done:
				return
			}
		}

		chunk, err := receiver.Recv()

		if err == io.EOF {
			return
		}

		if err != nil {
			select {
			case <-s.done:
				// Cancelled by the consumer; the RPC abort is expected.
			default:
				s.err = fmt.Errorf("streaming sql (code %s): %w: %w",
					status.Code(err), ErrTransport, err)
			}

			return
		}

		credit--

		select {
		case s.chunks <- chunk:
		case <-s.done:
			return
		}
	}
}

// Request grants the stream permission to deliver up to n more chunks.
// Grants larger than the transport's maximum request size are clamped.
func (s *ChunkStream) Request(n int64) {
	if n <= 0 {
		return
	}

	if n > maxRequest {
		n = maxRequest
	}

	select {
	case s.demand <- n:
	case <-s.done:
	}
}

// Recv returns the next chunk in arrival order. It returns io.EOF on
// clean completion or after cancellation, and a terminal transport error
// if the RPC failed.
func (s *ChunkStream) Recv(ctx context.Context) (*sppb.PartialResultSet, error) {
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			if s.err != nil {
				return nil, s.err
			}

			return nil, io.EOF
		}

		return chunk, nil
	case <-ctx.Done():
		s.Cancel()

		return nil, ctx.Err()
	}
}

// Cancel aborts the in-flight RPC and stops delivery. It is idempotent
// and safe to call concurrently with Recv.
func (s *ChunkStream) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
}
