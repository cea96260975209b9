package aggregates

import (
	"context"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
)

// TxRunner provides the transaction boundary for aggregate writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx graphstore.Tx) error) error
}

type storeTxRunner struct {
	store graphstore.Store
}

// NewStoreTxRunner returns a runner backed by store transactions.
func NewStoreTxRunner(store graphstore.Store) TxRunner {
	return &storeTxRunner{store: store}
}

func (r *storeTxRunner) InTx(ctx context.Context, fn func(tx graphstore.Tx) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.store == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil store", nil)
	}
	return r.store.InTx(ctx, fn)
}
