package client

import (
	"context"
	"errors"
	"io"
	"math"
	"sync/atomic"
	"testing"
	"time"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// scriptedReceiver replays a fixed chunk sequence, then a terminal
// error, counting how many chunks were actually pulled off the network.
type scriptedReceiver struct {
	chunks   []*sppb.PartialResultSet
	terminal error
	received atomic.Int64
}

func (r *scriptedReceiver) Recv() (*sppb.PartialResultSet, error) {
	index := int(r.received.Load())

	if index >= len(r.chunks) {
		if r.terminal != nil {
			return nil, r.terminal
		}

		return nil, io.EOF
	}

	r.received.Add(1)

	return r.chunks[index], nil
}

func chunk(value string) *sppb.PartialResultSet {
	return &sppb.PartialResultSet{
		Values: []*structpb.Value{structpb.NewStringValue(value)},
	}
}

func newTestStream(receiver ChunkReceiver) (*ChunkStream, *atomic.Bool) {
	released := &atomic.Bool{}

	stream := NewChunkStream(func() {}, receiver, func() {
		released.Store(true)
	})

	return stream, released
}

func TestDeliversInOrder(t *testing.T) {
	receiver := &scriptedReceiver{chunks: []*sppb.PartialResultSet{chunk("a"), chunk("b")}}
	stream, released := newTestStream(receiver)

	ctx := context.Background()

	// One extra credit lets the stream observe the completion.
	stream.Request(3)

	for _, want := range []string{"a", "b"} {
		got, err := stream.Recv(ctx)

		if err != nil {
			t.Fatal(err)
		}

		if got.GetValues()[0].GetStringValue() != want {
			t.Fatalf("got %v, want %q", got, want)
		}
	}

	if _, err := stream.Recv(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}

	if !released.Load() {
		t.Fatal("release not called after completion")
	}
}

// The stream must never pull more chunks from the network than the
// consumer has granted credit for.
func TestDemandDiscipline(t *testing.T) {
	receiver := &scriptedReceiver{chunks: []*sppb.PartialResultSet{chunk("a"), chunk("b"), chunk("c")}}
	stream, _ := newTestStream(receiver)

	ctx := context.Background()

	stream.Request(1)

	if _, err := stream.Recv(ctx); err != nil {
		t.Fatal(err)
	}

	// Credit is spent: nothing further may be read off the network.
	time.Sleep(10 * time.Millisecond)

	if got := receiver.received.Load(); got != 1 {
		t.Fatalf("received %d chunks with cumulative demand 1", got)
	}

	stream.Request(1)

	if _, err := stream.Recv(ctx); err != nil {
		t.Fatal(err)
	}

	if got := receiver.received.Load(); got != 2 {
		t.Fatalf("received %d chunks with cumulative demand 2", got)
	}

	stream.Cancel()
}

func TestRequestClamp(t *testing.T) {
	receiver := &scriptedReceiver{chunks: []*sppb.PartialResultSet{chunk("a")}}
	stream, _ := newTestStream(receiver)

	// Oversized and non-positive grants must not wedge the stream.
	stream.Request(math.MaxInt64)
	stream.Request(0)
	stream.Request(-5)

	if _, err := stream.Recv(context.Background()); err != nil {
		t.Fatal(err)
	}

	stream.Cancel()
}

func TestTerminalTransportError(t *testing.T) {
	receiver := &scriptedReceiver{
		chunks:   []*sppb.PartialResultSet{chunk("a")},
		terminal: errors.New("connection reset"),
	}
	stream, released := newTestStream(receiver)

	ctx := context.Background()

	stream.Request(2)

	if _, err := stream.Recv(ctx); err != nil {
		t.Fatal(err)
	}

	_, err := stream.Recv(ctx)

	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	// The error is terminal and sticky.
	if _, err := stream.Recv(ctx); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport again, got %v", err)
	}

	if !released.Load() {
		t.Fatal("release not called after error")
	}
}

// blockingReceiver parks in Recv until cancelled, like a live RPC with
// no data ready.
type blockingReceiver struct {
	unblock chan struct{}
}

func (r *blockingReceiver) Recv() (*sppb.PartialResultSet, error) {
	<-r.unblock

	return nil, errors.New("context canceled")
}

func TestCancelStopsDelivery(t *testing.T) {
	receiver := &blockingReceiver{unblock: make(chan struct{})}

	cancelled := &atomic.Bool{}
	stream := NewChunkStream(func() {
		// Mimics a context cancel aborting the in-flight Recv.
		cancelled.Store(true)
		close(receiver.unblock)
	}, receiver, func() {})

	stream.Request(1)

	stream.Cancel()
	stream.Cancel() // idempotent

	if !cancelled.Load() {
		t.Fatal("cancel did not reach the RPC")
	}

	if _, err := stream.Recv(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF after cancel, got %v", err)
	}
}

func TestRecvContextCancellation(t *testing.T) {
	receiver := &scriptedReceiver{}
	stream, _ := newTestStream(receiver)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No credit granted, so Recv can only end via the context.
	if _, err := stream.Recv(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
