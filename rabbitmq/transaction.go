package rabbitmq

import (
	"context"
	"errors"
	"time"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

// ErrNotTransactional is returned by TxCommit and TxRollback before TxSelect
var ErrNotTransactional = errors.New("channel not in transaction mode")

// TxSelect puts the channel into transaction mode
func (ch *Channel) TxSelect() error {
	if _, err := ch.rpc(&protocol.TxSelect{}); err != nil {
		return err
	}
	ch.txMode.Store(true)
	return nil
}

// TxCommit commits the current transaction, waiting up to the read timeout
func (ch *Channel) TxCommit() error {
	return ch.TxCommitWithTimeout(context.Background(), ch.conn.factory.ReadTimeout)
}

// TxCommitWithTimeout commits the current transaction, waiting up to timeout
// for commit-ok.
//
// A *TimeoutError leaves the outcome unknown: the broker may have committed.
func (ch *Channel) TxCommitWithTimeout(ctx context.Context, timeout time.Duration, opts ...CallOption) error {
	if !ch.txMode.Load() {
		return ErrNotTransactional
	}
	_, err := ch.call(ctx, &protocol.TxCommit{}, timeout, opts...)
	return err
}

// TxRollback rolls back the current transaction
func (ch *Channel) TxRollback() error {
	if !ch.txMode.Load() {
		return ErrNotTransactional
	}
	_, err := ch.rpc(&protocol.TxRollback{})
	return err
}

// IsTransactional reports whether TxSelect succeeded on this channel
func (ch *Channel) IsTransactional() bool {
	return ch.txMode.Load()
}
