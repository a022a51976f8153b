package chanlun

import (
	"context"
	"sort"
	"sync"

	"chan-analyzer/internal/logging"
	"chan-analyzer/internal/models"
)

// BatchResult holds the outcome of one instrument in a batch.
type BatchResult struct {
	Symbol string
	Result *Result
	Err    error
}

// AnalyzeBatch analyses many instruments concurrently using a worker pool.
// Results come back sorted by symbol. A failing instrument does not stop the others;
// cancelling ctx does, and unfinished instruments report ctx.Err().
func (e *Engine) AnalyzeBatch(ctx context.Context, series map[string][]models.Candle) []BatchResult {
	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	results := make(map[string]BatchResult, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup

	work := make(chan string, len(symbols))
	logger := logging.FromContext(ctx)

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range work {
				select {
				case <-ctx.Done():
					return
				default:
					symCtx := logging.WithLogger(ctx, logging.WithSymbol(logger, symbol))
					res, err := e.Analyze(symCtx, series[symbol])
					mu.Lock()
					results[symbol] = BatchResult{Symbol: symbol, Result: res, Err: err}
					mu.Unlock()
				}
			}
		}()
	}

	for _, s := range symbols {
		work <- s
	}
	close(work)

	wg.Wait()

	out := make([]BatchResult, 0, len(symbols))
	for _, s := range symbols {
		r, ok := results[s]
		if !ok {
			r = BatchResult{Symbol: s, Err: ctx.Err()}
		}
		out = append(out, r)
	}
	return out
}
