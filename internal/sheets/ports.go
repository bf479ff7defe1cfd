package sheets

import (
	"context"

	"tally/internal/core"
)

// Mirror is the outbound port of the sync worker. Appends return a
// reference to the written row.
type Mirror interface {
	AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	AppendBalance(ctx context.Context, b core.Balance) (rowRef string, err error)
}
