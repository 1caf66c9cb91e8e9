package spanner

import "errors"

// ErrInvalidTransactionState is reported when a transaction is begun,
// committed or rolled back from a state that does not allow it, or when
// a finished transaction is reused.
var ErrInvalidTransactionState = errors.New("invalid transaction state")
