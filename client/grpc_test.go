package client

import (
	"context"
	"errors"
	"io"
	"testing"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeSpanner records requests and replays canned responses. Methods not
// overridden panic through the embedded nil interface.
type fakeSpanner struct {
	sppb.SpannerClient

	createSessionReq *sppb.CreateSessionRequest
	deleteSessionReq *sppb.DeleteSessionRequest
	beginReq         *sppb.BeginTransactionRequest
	commitReq        *sppb.CommitRequest
	rollbackReq      *sppb.RollbackRequest
	executeReq       *sppb.ExecuteSqlRequest

	chunks []*sppb.PartialResultSet
	err    error
}

func (f *fakeSpanner) CreateSession(ctx context.Context, req *sppb.CreateSessionRequest, opts ...grpc.CallOption) (*sppb.Session, error) {
	f.createSessionReq = req

	if f.err != nil {
		return nil, f.err
	}

	return &sppb.Session{Name: req.GetDatabase() + "/sessions/s1"}, nil
}

func (f *fakeSpanner) DeleteSession(ctx context.Context, req *sppb.DeleteSessionRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	f.deleteSessionReq = req

	return &emptypb.Empty{}, f.err
}

func (f *fakeSpanner) BeginTransaction(ctx context.Context, req *sppb.BeginTransactionRequest, opts ...grpc.CallOption) (*sppb.Transaction, error) {
	f.beginReq = req

	if f.err != nil {
		return nil, f.err
	}

	return &sppb.Transaction{Id: []byte("tx1")}, nil
}

func (f *fakeSpanner) Commit(ctx context.Context, req *sppb.CommitRequest, opts ...grpc.CallOption) (*sppb.CommitResponse, error) {
	f.commitReq = req

	if f.err != nil {
		return nil, f.err
	}

	return &sppb.CommitResponse{}, nil
}

func (f *fakeSpanner) Rollback(ctx context.Context, req *sppb.RollbackRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	f.rollbackReq = req

	return &emptypb.Empty{}, f.err
}

func (f *fakeSpanner) ExecuteStreamingSql(ctx context.Context, req *sppb.ExecuteSqlRequest, opts ...grpc.CallOption) (sppb.Spanner_ExecuteStreamingSqlClient, error) {
	f.executeReq = req

	if f.err != nil {
		return nil, f.err
	}

	return &fakeExecuteStream{ctx: ctx, chunks: f.chunks}, nil
}

type fakeExecuteStream struct {
	grpc.ClientStream

	ctx    context.Context
	chunks []*sppb.PartialResultSet
	index  int
}

func (s *fakeExecuteStream) Recv() (*sppb.PartialResultSet, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}

	if s.index >= len(s.chunks) {
		return nil, io.EOF
	}

	chunk := s.chunks[s.index]
	s.index++

	return chunk, nil
}

func TestCreateSession(t *testing.T) {
	fake := &fakeSpanner{}
	c := NewGrpcClientWithStub(fake, Options{})

	session, err := c.CreateSession(context.Background(), "projects/p/instances/i/databases/d")

	if err != nil {
		t.Fatal(err)
	}

	if fake.createSessionReq.GetDatabase() != "projects/p/instances/i/databases/d" {
		t.Fatalf("unexpected request %v", fake.createSessionReq)
	}

	if session.GetName() == "" {
		t.Fatal("expected a session name")
	}
}

func TestUnaryTransportErrors(t *testing.T) {
	fake := &fakeSpanner{err: errors.New("unavailable")}
	c := NewGrpcClientWithStub(fake, Options{})

	ctx := context.Background()
	session := &sppb.Session{Name: "s1"}
	transaction := &sppb.Transaction{Id: []byte("tx1")}

	if _, err := c.CreateSession(ctx, "db"); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	if err := c.DeleteSession(ctx, session); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	if _, err := c.BeginTransaction(ctx, session); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	if _, err := c.Commit(ctx, session, transaction); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	if err := c.Rollback(ctx, session, transaction); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestCommitCarriesTransactionID(t *testing.T) {
	fake := &fakeSpanner{}
	c := NewGrpcClientWithStub(fake, Options{})

	_, err := c.Commit(context.Background(), &sppb.Session{Name: "s1"}, &sppb.Transaction{Id: []byte("tx9")})

	if err != nil {
		t.Fatal(err)
	}

	if fake.commitReq.GetSession() != "s1" || string(fake.commitReq.GetTransactionId()) != "tx9" {
		t.Fatalf("unexpected commit request %v", fake.commitReq)
	}
}

func TestExecuteStreamingSql(t *testing.T) {
	fake := &fakeSpanner{
		chunks: []*sppb.PartialResultSet{chunk("a"), chunk("b")},
	}
	c := NewGrpcClientWithStub(fake, Options{MaxStreams: 1})

	ctx := context.Background()

	selector := &sppb.TransactionSelector{
		Selector: &sppb.TransactionSelector_Id{Id: []byte("tx1")},
	}

	stream, err := c.ExecuteStreamingSql(ctx, &ExecuteRequest{
		Session:  &sppb.Session{Name: "s1"},
		Selector: selector,
		SQL:      "SELECT a FROM t",
		Params: &structpb.Struct{Fields: map[string]*structpb.Value{
			"p1": structpb.NewStringValue("x"),
		}},
	})

	if err != nil {
		t.Fatal(err)
	}

	if fake.executeReq.GetSession() != "s1" || fake.executeReq.GetSql() != "SELECT a FROM t" {
		t.Fatalf("unexpected request %v", fake.executeReq)
	}

	if fake.executeReq.GetTransaction().GetId() == nil {
		t.Fatalf("transaction selector not forwarded: %v", fake.executeReq)
	}

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

	// The stream slot is released on completion: with MaxStreams of 1 a
	// second execution must be admitted.
	second, err := c.ExecuteStreamingSql(ctx, &ExecuteRequest{
		Session:  &sppb.Session{Name: "s1"},
		Selector: selector,
		SQL:      "SELECT 1",
	})

	if err != nil {
		t.Fatal(err)
	}

	second.Cancel()
}
