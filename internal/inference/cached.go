package inference

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kingrea/claims-workbench/internal/claims"
)

// DefaultCacheSize bounds the number of cached assessments.
const DefaultCacheSize = 64

// Cached memoizes assessments per claim and photo content, and collapses
// identical in-flight requests into one backend call. Failures are not cached.
type Cached struct {
	next   Assessor
	cache  *lru.Cache[string, claims.Assessment]
	group  singleflight.Group
	logger *zap.Logger
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next Assessor, size int, logger *zap.Logger) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, claims.Assessment](size)
	if err != nil {
		return nil, eris.Wrap(err, "inference: create assessment cache")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, logger: logger}, nil
}

// Assess returns a cached copy when the same claim and photo set was assessed before.
func (c *Cached) Assess(ctx context.Context, req Request) (claims.Assessment, error) {
	key := Fingerprint(req)
	if hit, ok := c.cache.Get(key); ok {
		c.logger.Debug("assessment cache hit", zap.String("claim_id", req.Claim.ID))
		return *hit.Clone(), nil
	}
	value, err, shared := c.group.Do(key, func() (any, error) {
		result, err := c.next.Assess(ctx, req)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, result)
		return result, nil
	})
	if err != nil {
		return claims.Assessment{}, Wrap("assess", err)
	}
	if shared {
		c.logger.Debug("assessment request collapsed", zap.String("claim_id", req.Claim.ID))
	}
	result := value.(claims.Assessment)
	return *result.Clone(), nil
}

// Len reports the number of cached assessments.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Fingerprint identifies a request by claim, policy and photo content.
func Fingerprint(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Claim.ID))
	h.Write([]byte{0})
	h.Write([]byte(req.Claim.PolicyNumber))
	h.Write([]byte{0})
	var size [8]byte
	for i, photo := range req.Photos {
		if i < len(req.Uploads) && len(req.Uploads[i].Data) > 0 {
			sum := sha256.Sum256(req.Uploads[i].Data)
			h.Write(sum[:])
		} else {
			h.Write([]byte(photo.Filename))
			binary.BigEndian.PutUint64(size[:], uint64(photo.Meta.SizeBytes))
			h.Write(size[:])
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
