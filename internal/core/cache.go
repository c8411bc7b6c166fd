package core

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coocood/freecache"
)

const minCacheSizeBytes = 512 * 1024

// PredictionCache memoizes per-pair model outputs. A nil cache is valid and
// never hits.
type PredictionCache struct {
	cache      *freecache.Cache
	ttlSeconds int
}

type cachedPrediction struct {
	Label     int       `json:"l"`
	Attention []float32 `json:"a"`
}

// NewPredictionCache returns nil when sizeBytes is not positive. Sizes below
// freecache's minimum are rounded up by freecache itself.
func NewPredictionCache(sizeBytes int, ttl time.Duration) *PredictionCache {
	if sizeBytes <= 0 {
		return nil
	}
	if sizeBytes < minCacheSizeBytes {
		slog.Warn("prediction cache size below minimum, using minimum", "size_bytes", sizeBytes, "min_bytes", minCacheSizeBytes)
	}
	return &PredictionCache{
		cache:      freecache.NewCache(sizeBytes),
		ttlSeconds: int(ttl / time.Second),
	}
}

func cacheKey(pair Pair) []byte {
	return []byte(pair.Epitope + "|" + pair.Cdr3b)
}

func (c *PredictionCache) Get(pair Pair) (Prediction, bool) {
	if c == nil {
		return Prediction{}, false
	}

	data, err := c.cache.Get(cacheKey(pair))
	if err != nil {
		return Prediction{}, false
	}

	var cached cachedPrediction
	if err := json.Unmarshal(data, &cached); err != nil {
		slog.Error("error decoding cached prediction", "epitope", pair.Epitope, "cdr3b", pair.Cdr3b, "error", err)
		return Prediction{}, false
	}

	return Prediction{Pair: pair, Label: cached.Label, Attention: cached.Attention}, true
}

func (c *PredictionCache) Set(pred Prediction) {
	if c == nil {
		return
	}

	data, err := json.Marshal(cachedPrediction{Label: pred.Label, Attention: pred.Attention})
	if err != nil {
		slog.Error("error encoding prediction for cache", "error", err)
		return
	}

	if err := c.cache.Set(cacheKey(pred.Pair), data, c.ttlSeconds); err != nil {
		slog.Warn("unable to cache prediction", "epitope", pred.Epitope, "cdr3b", pred.Cdr3b, "error", err)
	}
}

func (c *PredictionCache) HitRate() float64 {
	if c == nil {
		return 0
	}
	return c.cache.HitRate()
}
