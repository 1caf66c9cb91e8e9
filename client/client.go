// Package client implements the RPC layer of the driver: one-shot
// session and transaction calls, and the demand-driven streaming
// execution channel.
package client

import (
	"context"
	"errors"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrTransport is reported when an underlying RPC fails. The driver does
// not retry; retry policy belongs to the caller.
var ErrTransport = errors.New("transport error")

// ExecuteRequest carries everything a streaming execution needs: the
// session, the resolved transaction selector, the SQL text and any bound
// parameters.
type ExecuteRequest struct {
	Session    *sppb.Session
	Selector   *sppb.TransactionSelector
	SQL        string
	Params     *structpb.Struct
	ParamTypes map[string]*sppb.Type
}

// Client is the driver's view of the database RPC surface.
type Client interface {
	CreateSession(ctx context.Context, database string) (*sppb.Session, error)

	DeleteSession(ctx context.Context, session *sppb.Session) error

	BeginTransaction(ctx context.Context, session *sppb.Session) (*sppb.Transaction, error)

	Commit(ctx context.Context, session *sppb.Session, transaction *sppb.Transaction) (*sppb.CommitResponse, error)

	Rollback(ctx context.Context, session *sppb.Session, transaction *sppb.Transaction) error

	// ExecuteStreamingSql issues the streaming query RPC. The returned
	// stream starts with no credit: nothing is delivered until the
	// consumer requests it.
	ExecuteStreamingSql(ctx context.Context, req *ExecuteRequest) (*ChunkStream, error)

	Close() error
}
