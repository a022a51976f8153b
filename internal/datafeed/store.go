package datafeed

import (
	"context"
	"time"

	"chan-analyzer/internal/errors"
	"chan-analyzer/internal/logging"
	"chan-analyzer/internal/models"
	"chan-analyzer/internal/resilience"
	"chan-analyzer/internal/store"
	"chan-analyzer/pkg/utils"
)

// StoreSource serves bars previously imported into the SQLite store.
// Reads are retried with backoff while the database is busy. An optional circuit
// breaker fails later reads fast once the store keeps failing.
type StoreSource struct {
	store   store.DataStore
	retry   utils.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewStoreSource creates a store-backed source.
func NewStoreSource(ds store.DataStore, retry utils.RetryConfig) *StoreSource {
	if retry.Retryable == nil {
		retry.Retryable = isTransient
	}
	return &StoreSource{store: ds, retry: retry}
}

// WithBreaker guards every read, including its retries, with cb.
func (s *StoreSource) WithBreaker(cb *resilience.CircuitBreaker) *StoreSource {
	s.breaker = cb
	return s
}

// NewStoreBreaker returns a breaker that only counts failures isTransient would retry.
func NewStoreBreaker(threshold int, cooldown time.Duration) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker("store", resilience.CircuitBreakerConfig{
		FailureThreshold: threshold,
		Cooldown:         cooldown,
		IsFailure:        isTransient,
	})
}

// isTransient rejects failures another attempt cannot fix.
func isTransient(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, errors.ErrInvalidInput)
}

// Bars implements Source.
func (s *StoreSource) Bars(ctx context.Context, req Request) ([]models.Candle, error) {
	logger := logging.WithSymbol(logging.FromContext(ctx), req.Symbol)

	cfg := s.retry
	onRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error) {
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Retrying candle read")
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	start := time.Now()
	read := func() ([]models.Candle, error) {
		return utils.RetryWithResult(ctx, cfg, func() ([]models.Candle, error) {
			return s.store.GetCandles(ctx, req.Symbol, req.Timeframe, req.From, req.To)
		})
	}
	var candles []models.Candle
	var err error
	if s.breaker != nil {
		candles, err = resilience.Execute(s.breaker, read)
	} else {
		candles, err = read()
	}
	logging.LogStoreCall(logger, "get_candles", time.Since(start), err)
	if err != nil {
		return nil, errors.NewDataError("candles", req.Symbol, "failed to read candles", err)
	}
	if len(candles) == 0 {
		return nil, errors.NewDataError("candles", req.Symbol,
			"no candles stored for timeframe "+req.Timeframe, errors.ErrDataNotFound)
	}
	return candles, nil
}
