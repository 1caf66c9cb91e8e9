package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/oauth"
	"google.golang.org/grpc/status"
)

const (
	defaultEndpoint = "spanner.googleapis.com:443"
	scope           = "https://www.googleapis.com/auth/spanner.data"

	// defaultMaxStreams bounds concurrent streaming executions on one
	// shared channel. Unary calls are not limited.
	defaultMaxStreams = 100
)

// Options configures a GrpcClient.
type Options struct {
	// Endpoint overrides the production endpoint, for emulators and tests.
	Endpoint string

	// CredentialsFile is a path to a service account JSON key. When empty,
	// application default credentials are used.
	CredentialsFile string

	// MaxStreams overrides the concurrent streaming execution limit.
	MaxStreams int64

	Logger *slog.Logger
}

// GrpcClient is the gRPC implementation of Client. All executions share
// one channel; each streaming call owns its own stream and flow-control
// state, so no cross-stream locking is needed.
type GrpcClient struct {
	conn    *grpc.ClientConn
	spanner sppb.SpannerClient
	streams *semaphore.Weighted
	logger  *slog.Logger
}

// Dial connects to the database endpoint and wires per-RPC credentials.
func Dial(ctx context.Context, opts Options) (*GrpcClient, error) {
	endpoint := opts.Endpoint

	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	tokenSource, err := tokenSource(ctx, opts.CredentialsFile)

	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})),
		grpc.WithPerRPCCredentials(oauth.TokenSource{TokenSource: tokenSource}),
	)

	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w: %w", endpoint, ErrTransport, err)
	}

	return &GrpcClient{
		conn:    conn,
		spanner: sppb.NewSpannerClient(conn),
		streams: semaphore.NewWeighted(maxStreams(opts)),
		logger:  logger(opts),
	}, nil
}

// NewGrpcClientWithStub builds a client around an existing stub. The
// caller keeps ownership of the underlying channel.
func NewGrpcClientWithStub(stub sppb.SpannerClient, opts Options) *GrpcClient {
	return &GrpcClient{
		spanner: stub,
		streams: semaphore.NewWeighted(maxStreams(opts)),
		logger:  logger(opts),
	}
}

func (c *GrpcClient) CreateSession(ctx context.Context, database string) (*sppb.Session, error) {
	session, err := c.spanner.CreateSession(ctx, &sppb.CreateSessionRequest{
		Database: database,
	})

	if err != nil {
		return nil, wrapTransport("create session", err)
	}

	return session, nil
}

func (c *GrpcClient) DeleteSession(ctx context.Context, session *sppb.Session) error {
	_, err := c.spanner.DeleteSession(ctx, &sppb.DeleteSessionRequest{
		Name: session.GetName(),
	})

	if err != nil {
		return wrapTransport("delete session", err)
	}

	return nil
}

func (c *GrpcClient) BeginTransaction(ctx context.Context, session *sppb.Session) (*sppb.Transaction, error) {
	transaction, err := c.spanner.BeginTransaction(ctx, &sppb.BeginTransactionRequest{
		Session: session.GetName(),
		Options: &sppb.TransactionOptions{
			Mode: &sppb.TransactionOptions_ReadWrite_{
				ReadWrite: &sppb.TransactionOptions_ReadWrite{},
			},
		},
	})

	if err != nil {
		return nil, wrapTransport("begin transaction", err)
	}

	return transaction, nil
}

func (c *GrpcClient) Commit(ctx context.Context, session *sppb.Session, transaction *sppb.Transaction) (*sppb.CommitResponse, error) {
	response, err := c.spanner.Commit(ctx, &sppb.CommitRequest{
		Session: session.GetName(),
		Transaction: &sppb.CommitRequest_TransactionId{
			TransactionId: transaction.GetId(),
		},
	})

	if err != nil {
		return nil, wrapTransport("commit", err)
	}

	return response, nil
}

func (c *GrpcClient) Rollback(ctx context.Context, session *sppb.Session, transaction *sppb.Transaction) error {
	_, err := c.spanner.Rollback(ctx, &sppb.RollbackRequest{
		Session:       session.GetName(),
		TransactionId: transaction.GetId(),
	})

	if err != nil {
		return wrapTransport("rollback", err)
	}

	return nil
}

func (c *GrpcClient) ExecuteStreamingSql(ctx context.Context, req *ExecuteRequest) (*ChunkStream, error) {
	if err := c.streams.Acquire(ctx, 1); err != nil {
		return nil, wrapTransport("execute streaming sql", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	call, err := c.spanner.ExecuteStreamingSql(streamCtx, &sppb.ExecuteSqlRequest{
		Session:     req.Session.GetName(),
		Transaction: req.Selector,
		Sql:         req.SQL,
		Params:      req.Params,
		ParamTypes:  req.ParamTypes,
	})

	if err != nil {
		cancel()
		c.streams.Release(1)

		return nil, wrapTransport("execute streaming sql", err)
	}

	execution := uuid.NewString()
	c.logger.Debug("streaming sql started", "execution", execution, "session", req.Session.GetName())

	return NewChunkStream(cancel, call, func() {
		cancel()
		c.streams.Release(1)
		c.logger.Debug("streaming sql finished", "execution", execution)
	}), nil
}

func (c *GrpcClient) Close() error {
	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

func wrapTransport(op string, err error) error {
	return fmt.Errorf("%s (code %s): %w: %w", op, status.Code(err), ErrTransport, err)
}

func tokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)

		if err != nil {
			return nil, err
		}

		creds, err := google.CredentialsFromJSON(ctx, data, scope)

		if err != nil {
			return nil, err
		}

		return creds.TokenSource, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, scope)

	if err != nil {
		return nil, err
	}

	return creds.TokenSource, nil
}

func maxStreams(opts Options) int64 {
	if opts.MaxStreams > 0 {
		return opts.MaxStreams
	}

	return defaultMaxStreams
}

func logger(opts Options) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}

	return slog.Default()
}
