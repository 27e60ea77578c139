// Package datasource loads market series for the engine. Loaders are the only
// blocking collaborators of a run and all take a context.
package datasource

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

// Loader returns the bars of symbol at interval between start and end,
// inclusive. An unset bound is open. A query with no bars fails with
// ErrCodeDataUnavailable.
type Loader interface {
	Load(ctx context.Context, symbol string, interval types.Interval, start, end optional.Option[time.Time]) (types.MarketSeries, error)
}

// SymbolLister is implemented by loaders that can enumerate their symbols.
type SymbolLister interface {
	Symbols(ctx context.Context) ([]string, error)
}
