package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

// Cache is the narrow namespace-scoped key/value capability memoization needs.
// Satisfied structurally by internal/store's redis-backed cache, no import required.
type Cache interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key string, value string) error
}

// RedisMemoPolicy fingerprints a node's action and normalized inputs, short-circuiting
// execution when a prior result is cached.
type RedisMemoPolicy struct {
	Cache Cache
}

// Key implements Memoization: fingerprint = action + normalized relevant inputs.
func (p RedisMemoPolicy) Key(node *dagmodel.IdeaNode) (string, bool) {
	action := node.Action()
	switch action {
	case dagmodel.ActionSearch, dagmodel.ActionVisit, dagmodel.ActionThink, dagmodel.ActionSave:
	default:
		return "", false
	}

	payload := map[string]any{"action": action}
	for _, k := range []dagmodel.DetailKey{dagmodel.DetailQuery, dagmodel.DetailURL, dagmodel.DetailText, dagmodel.DetailDocuments, dagmodel.DetailMetadatas} {
		if v, ok := node.Details[k]; ok {
			payload[string(k)] = v
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), true
}

// ShouldReuse looks up key in the namespace-scoped cache.
func (p RedisMemoPolicy) ShouldReuse(ctx context.Context, namespace, key string) (dagmodel.Details, bool, error) {
	raw, found, err := p.Cache.Get(ctx, namespace, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	var result dagmodel.Details
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, fmt.Errorf("policy: memo cache payload corrupt: %w", err)
	}
	return result, true, nil
}

// Store writes result into the namespace-scoped cache under key.
func (p RedisMemoPolicy) Store(ctx context.Context, namespace, key string, result dagmodel.Details) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return p.Cache.Set(ctx, namespace, key, string(data))
}
