package tracer

import (
	"sync"
	"time"

	"github.com/avolkhov/logly/internal/model"
)

// IPTracer classifies addresses and caches their reputation rows. The cache
// avoids a store read per repeated address within one analysis pass; the
// store row stays authoritative.
type IPTracer struct {
	store TraceStore

	mu    sync.Mutex
	cache map[string]*model.IPReputation
}

func NewIPTracer(store TraceStore) *IPTracer {
	return &IPTracer{store: store, cache: make(map[string]*model.IPReputation)}
}

// Analyze returns the reputation for an address, creating a fresh row for
// addresses never seen before. The fresh row is persisted so later events
// accrue onto it.
func (t *IPTracer) Analyze(ip string) (*model.IPReputation, error) {
	if ip == "" {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if rep, ok := t.cache[ip]; ok {
		return rep, nil
	}

	rep, err := t.store.GetIPReputation(ip)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		now := time.Now().Unix()
		rep = &model.IPReputation{
			IP:        ip,
			Type:      model.ClassifyIP(ip),
			FirstSeen: now,
			LastSeen:  now,
			UpdatedAt: now,
		}
		rep.Recompute()
		if err := t.store.UpsertIPReputation(rep); err != nil {
			return nil, err
		}
	}
	t.cache[ip] = rep
	return rep, nil
}

// Classify exposes the pure classification without touching the store.
func (t *IPTracer) Classify(ip string) string { return model.ClassifyIP(ip) }

// Invalidate drops an address from the cache, forcing a re-read.
func (t *IPTracer) Invalidate(ip string) {
	t.mu.Lock()
	delete(t.cache, ip)
	t.mu.Unlock()
}
