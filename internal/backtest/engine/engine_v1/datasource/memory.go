package datasource

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

type memoryKey struct {
	symbol   string
	interval types.Interval
}

// MemoryLoader serves series that were added up front. It is safe for
// concurrent use.
type MemoryLoader struct {
	series map[memoryKey]types.MarketSeries
	mu     sync.RWMutex
}

func NewMemoryLoader(series ...types.MarketSeries) *MemoryLoader {
	l := &MemoryLoader{
		series: make(map[memoryKey]types.MarketSeries),
		mu:     sync.RWMutex{},
	}

	for _, s := range series {
		l.Add(s)
	}

	return l
}

// Add stores s, replacing any series with the same symbol and interval.
func (l *MemoryLoader) Add(s types.MarketSeries) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.series[memoryKey{symbol: s.Symbol(), interval: s.Interval()}] = s
}

// Load implements Loader.
func (l *MemoryLoader) Load(ctx context.Context, symbol string, interval types.Interval, start, end optional.Option[time.Time]) (types.MarketSeries, error) {
	if err := ctx.Err(); err != nil {
		return types.MarketSeries{}, err
	}

	l.mu.RLock()
	s, ok := l.series[memoryKey{symbol: symbol, interval: interval}]
	l.mu.RUnlock()

	if !ok {
		return types.MarketSeries{}, dataUnavailable(symbol, interval)
	}

	from, to := bounds(start, end)

	out := s.Between(from, to)
	if out.IsEmpty() {
		return types.MarketSeries{}, dataUnavailable(symbol, interval)
	}

	return out, nil
}

// Symbols implements SymbolLister.
func (l *MemoryLoader) Symbols(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []string

	for key := range l.series {
		if !slices.Contains(out, key.symbol) {
			out = append(out, key.symbol)
		}
	}

	slices.Sort(out)

	return out, nil
}
