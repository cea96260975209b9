package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/mdr-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-backend/internal/data/graphstore"
)

// InjectedTxRunner is a test helper for aggregate tests.
// It supports rollback/failure injection. With Inner set, the body runs in a
// real store transaction and injected failures roll it back.
type InjectedTxRunner struct {
	mu sync.Mutex

	Inner graphstore.Store

	FailBegin      error
	FailBeforeBody error
	FailCommit     error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(tx graphstore.Tx) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin := r.FailBegin
	failBeforeBody := r.FailBeforeBody
	failCommit := r.FailCommit
	inner := r.Inner
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.rollback()
		return failBeforeBody
	}
	if fn == nil {
		r.commit()
		return nil
	}
	body := func(tx graphstore.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return failCommit
	}
	var err error
	if inner != nil {
		err = inner.InTx(ctx, body)
	} else {
		err = body(nil)
	}
	if err != nil {
		r.rollback()
		return err
	}
	r.commit()
	return nil
}

func (r *InjectedTxRunner) commit() {
	r.mu.Lock()
	r.CommitCalls++
	r.mu.Unlock()
}

func (r *InjectedTxRunner) rollback() {
	r.mu.Lock()
	r.RollbackCalls++
	r.mu.Unlock()
}
