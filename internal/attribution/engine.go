// Package attribution computes, per stable field key, the version at which
// the field's effective value last changed.
package attribution

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/model"
)

// HistorySource reads every field snapshot of a document up to a version.
type HistorySource interface {
	FieldHistory(ctx context.Context, documentID string, upTo int) ([]model.FieldSnapshot, error)
}

// Engine computes attribution maps, optionally through a Cache.
type Engine struct {
	src   HistorySource
	cache Cache
}

// NewEngine returns an Engine reading from src. A nil cache disables caching.
func NewEngine(src HistorySource, cache Cache) *Engine {
	if cache == nil {
		cache = NopCache{}
	}
	return &Engine{src: src, cache: cache}
}

// Compute returns key -> last changed version for versions 1..upTo. An
// unknown document or an empty range yields an empty map.
func (e *Engine) Compute(ctx context.Context, documentID string, upTo int) (map[string]int, error) {
	if upTo < 1 {
		return map[string]int{}, nil
	}

	log := zap.L().With(zap.String("component", "attribution"), zap.String("document_id", documentID))

	if cached, ok, err := e.cache.Get(ctx, documentID, upTo); err != nil {
		log.Warn("attribution cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	// The generation must be read before history so an invalidation during
	// the read discards this result instead of caching it.
	gen, genErr := e.cache.Generation(ctx, documentID)
	if genErr != nil {
		log.Warn("attribution cache generation read failed", zap.Error(genErr))
	}

	snaps, err := e.src.FieldHistory(ctx, documentID, upTo)
	if err != nil {
		return nil, apperr.Storage("attribution: field history", err)
	}
	result := Attribute(snaps)

	if genErr == nil {
		if err := e.cache.Set(ctx, documentID, upTo, gen, result); err != nil {
			log.Warn("attribution cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// Invalidate drops every cached map for the document. It must run after
// any write to the document's fields.
func (e *Engine) Invalidate(ctx context.Context, documentID string) error {
	return e.cache.Invalidate(ctx, documentID)
}

// Attribute walks snapshots grouped by key in version order. The first
// version a key appears in seeds both the last seen value and the last
// changed version; each later version whose trimmed effective value differs
// moves both forward. Case is significant.
func Attribute(snaps []model.FieldSnapshot) map[string]int {
	ordered := make([]model.FieldSnapshot, len(snaps))
	copy(ordered, snaps)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Key != ordered[j].Key {
			return ordered[i].Key < ordered[j].Key
		}
		return ordered[i].VersionNumber < ordered[j].VersionNumber
	})

	out := make(map[string]int)
	var (
		curKey      string
		lastSeen    string
		lastChanged int
		started     bool
	)
	for _, s := range ordered {
		value := s.EffectiveValue()
		if !started || s.Key != curKey {
			if started {
				out[curKey] = lastChanged
			}
			curKey, lastSeen, lastChanged, started = s.Key, value, s.VersionNumber, true
			continue
		}
		if value != lastSeen {
			lastSeen = value
			lastChanged = s.VersionNumber
		}
	}
	if started {
		out[curKey] = lastChanged
	}
	return out
}

// ChangedIn returns the attributed version for key, defaulting to 1.
func ChangedIn(m map[string]int, key string) int {
	if v, ok := m[key]; ok {
		return v
	}
	return 1
}
