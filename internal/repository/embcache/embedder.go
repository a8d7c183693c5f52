package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/db"
	"github.com/kailas-cloud/clinicrag/internal/domain"
)

// DefaultKeyPrefix namespaces cache keys when Config.KeyPrefix is empty.
const DefaultKeyPrefix = "clinicrag:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	SetMulti(ctx context.Context, items []db.SetItem, ttl time.Duration) error
}

// Config controls key layout and expiry.
// Namespace should identify the provider, model and dimensions so vectors of different
// embedders never share a key.
type Config struct {
	KeyPrefix string
	Namespace string
	TTL       time.Duration
}

// CachedEmbedder caches embeddings per text in a key-value store.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	prefix     string
	namespace  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		prefix:     prefix + "emb_cache:",
		namespace:  cfg.Namespace,
		ttl:        cfg.TTL,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed serves cached vectors and sends only the misses to the inner embedder, in one call.
// Token counts reflect the misses only; a full hit reports 0 tokens.
// Cache failures degrade to misses and never fail the call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.EmbeddingResult{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.cacheKey(t)
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	cached := c.getFromCache(ctx, keys)
	for i := range texts {
		if vec, ok := decodeEntry(cached, i); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
	}

	c.addCache("hit", len(texts)-len(missIdx))
	c.addCache("miss", len(missIdx))

	if len(missIdx) == 0 {
		return domain.EmbeddingResult{Embeddings: out}, nil
	}

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
	}

	res, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed texts: %w", err)
	}
	if err = domain.CheckCount(res, len(missTexts)); err != nil {
		return domain.EmbeddingResult{}, err
	}

	items := make([]db.SetItem, len(missIdx))
	for j, i := range missIdx {
		out[i] = res.Embeddings[j]
		items[j] = db.SetItem{Key: keys[i], Value: vectorToCacheBytes(res.Embeddings[j])}
	}
	c.putToCache(ctx, items)

	return domain.EmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (c *CachedEmbedder) addCache(result string, n int) {
	if c.cacheTotal != nil && n > 0 {
		c.cacheTotal.WithLabelValues(result).Add(float64(n))
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.namespace))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, keys []string) [][]byte {
	data, err := c.store.MGet(ctx, keys)
	if err != nil {
		c.logger.Warn("Failed to get cached embeddings", zap.Int("keys", len(keys)), zap.Error(err))
		return nil
	}
	return data
}

func decodeEntry(cached [][]byte, i int) ([]float32, bool) {
	if i >= len(cached) || len(cached[i]) == 0 {
		return nil, false
	}
	vec, err := bytesToVector(cached[i])
	if err != nil {
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, items []db.SetItem) {
	if err := c.store.SetMulti(ctx, items, c.ttl); err != nil {
		c.logger.Warn("Failed to cache embeddings", zap.Int("keys", len(items)), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
