package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/core"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long a fetched series is reused.
const DefaultTTL = 5 * time.Minute

// HitRecorder receives one event per cache lookup.
type HitRecorder interface {
	RecordCacheLookup(hit bool)
}

// Fetcher is a read-through cache in front of another fetcher. Only
// successful results are cached; store failures degrade to a direct fetch.
type Fetcher struct {
	next  collector.Fetcher
	store Store
	ttl   time.Duration
	log   *zap.Logger
	rec   HitRecorder
}

// New wraps next with a cache backed by store.
func New(next collector.Fetcher, store Store, ttl time.Duration, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Fetcher{
		next:  next,
		store: store,
		ttl:   ttl,
		log:   log,
	}
}

// WithRecorder attaches a hit/miss recorder.
func (f *Fetcher) WithRecorder(rec HitRecorder) *Fetcher {
	f.rec = rec
	return f
}

// Name reports the wrapped source's name.
func (f *Fetcher) Name() string {
	return f.next.Name()
}

// FetchCandles serves from the cache when possible.
func (f *Fetcher) FetchCandles(ctx context.Context, symbol, timeframe string, since time.Time, limit int) collector.FetchResult {
	key := Key(f.next.Name(), symbol, timeframe, since, limit)

	if candles, ok := f.lookup(ctx, key); ok {
		return collector.OK(candles)
	}

	res := f.next.FetchCandles(ctx, symbol, timeframe, since, limit)
	if res.Status != collector.StatusOK {
		return res
	}

	data, err := json.Marshal(res.Candles)
	if err == nil {
		err = f.store.Set(ctx, key, data, f.ttl)
	}
	if err != nil {
		f.log.Warn("candle cache write failed", zap.String("key", key), zap.Error(err))
	}
	return res
}

func (f *Fetcher) lookup(ctx context.Context, key string) ([]core.Candle, bool) {
	data, err := f.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			f.log.Warn("candle cache read failed", zap.String("key", key), zap.Error(err))
		}
		f.record(false)
		return nil, false
	}

	var candles []core.Candle
	if err := json.Unmarshal(data, &candles); err != nil || len(candles) == 0 {
		f.log.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		f.record(false)
		return nil, false
	}
	f.record(true)
	return candles, true
}

func (f *Fetcher) record(hit bool) {
	if f.rec != nil {
		f.rec.RecordCacheLookup(hit)
	}
}

// Key identifies one fetch request.
func Key(source, symbol, timeframe string, since time.Time, limit int) string {
	return fmt.Sprintf("candles:%s:%s:%s:%d:%d",
		source, collector.NormalizeSymbol(symbol, ""), timeframe, since.UnixMilli(), limit)
}
