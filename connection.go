package spanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"

	"github.com/eddumelendez/cloud-spanner-go/client"
	"github.com/eddumelendez/cloud-spanner-go/codecs"
)

type txState int

const (
	txNone txState = iota
	txBegun
	txCommitted
	txRolledBack
)

// Connection owns one server session and at most one explicit read-write
// transaction at a time. Statements created from it execute inside the
// current transaction when one is begun, and inside an implicit
// single-use strong read-only transaction otherwise.
type Connection struct {
	client client.Client
	codecs codecs.Codecs
	logger *slog.Logger

	// session is created once per connection and immutable afterwards.
	session *sppb.Session

	mutex       sync.Mutex
	state       txState
	transaction *sppb.Transaction
}

// NewConnection creates the server session backing the connection.
func NewConnection(ctx context.Context, c client.Client, databaseName string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	session, err := c.CreateSession(ctx, databaseName)

	if err != nil {
		return nil, err
	}

	logger.Debug("session created", "session", session.GetName())

	return &Connection{
		client:  c,
		codecs:  codecs.DefaultCodecs(),
		logger:  logger,
		session: session,
		state:   txNone,
	}, nil
}

// CreateStatement binds SQL text to this connection. The statement picks
// up the transaction context at execution time.
func (c *Connection) CreateStatement(sql string) *Statement {
	return &Statement{
		connection: c,
		sql:        sql,
	}
}

// BeginTransaction starts an explicit read-write transaction. There can
// be only one per connection at a time.
func (c *Connection) BeginTransaction(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state == txBegun {
		return fmt.Errorf("transaction already begun: %w", ErrInvalidTransactionState)
	}

	transaction, err := c.client.BeginTransaction(ctx, c.session)

	if err != nil {
		return err
	}

	c.state = txBegun
	c.transaction = transaction

	return nil
}

// Commit commits the current transaction. The handle is not reusable
// afterwards; committing again or rolling back fails.
func (c *Connection) Commit(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != txBegun {
		return fmt.Errorf("commit without an active transaction: %w", ErrInvalidTransactionState)
	}

	_, err := c.client.Commit(ctx, c.session, c.transaction)

	if err != nil {
		return err
	}

	c.state = txCommitted
	c.transaction = nil

	return nil
}

// Rollback rolls back the current transaction.
func (c *Connection) Rollback(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != txBegun {
		return fmt.Errorf("rollback without an active transaction: %w", ErrInvalidTransactionState)
	}

	err := c.client.Rollback(ctx, c.session, c.transaction)

	if err != nil {
		return err
	}

	c.state = txRolledBack
	c.transaction = nil

	return nil
}

// Close rolls back any open transaction and deletes the session.
func (c *Connection) Close(ctx context.Context) error {
	c.mutex.Lock()

	if c.state == txBegun {
		if err := c.client.Rollback(ctx, c.session, c.transaction); err != nil {
			c.logger.Warn("rollback on close failed", "session", c.session.GetName(), "error", err)
		}

		c.state = txRolledBack
		c.transaction = nil
	}

	c.mutex.Unlock()

	return c.client.DeleteSession(ctx, c.session)
}

// selector resolves the transaction context for a statement: the current
// explicit transaction when one is begun, otherwise a temporary
// single-use read-only transaction with strong concurrency, stated
// explicitly rather than left empty.
func (c *Connection) selector() *sppb.TransactionSelector {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state == txBegun {
		return &sppb.TransactionSelector{
			Selector: &sppb.TransactionSelector_Id{
				Id: c.transaction.GetId(),
			},
		}
	}

	return &sppb.TransactionSelector{
		Selector: &sppb.TransactionSelector_SingleUse{
			SingleUse: &sppb.TransactionOptions{
				Mode: &sppb.TransactionOptions_ReadOnly_{
					ReadOnly: &sppb.TransactionOptions_ReadOnly{
						TimestampBound: &sppb.TransactionOptions_ReadOnly_Strong{
							Strong: true,
						},
					},
				},
			},
		},
	}
}
