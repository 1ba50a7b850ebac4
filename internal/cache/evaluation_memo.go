package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/health-screening-server/internal/domain"
)

// EvaluationMemo memoizes engine results by snapshot fingerprint.
// Entries expire after the configured TTL; the oldest entry is evicted when full.
type EvaluationMemo struct {
	entries *expirable.LRU[string, *domain.EvaluationResult]
}

// NewEvaluationMemo creates a memo holding at most maxItems results
func NewEvaluationMemo(maxItems int, ttl time.Duration) *EvaluationMemo {
	if maxItems <= 0 {
		maxItems = 500
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &EvaluationMemo{
		entries: expirable.NewLRU[string, *domain.EvaluationResult](maxItems, nil, ttl),
	}
}

// Fingerprint returns a stable hash of a snapshot's JSON form
func Fingerprint(snapshot *domain.QuestionnaireSnapshot) (string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("fingerprinting snapshot: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// GetOrEvaluate returns the memoized result for snapshot or computes and stores it
func (m *EvaluationMemo) GetOrEvaluate(snapshot *domain.QuestionnaireSnapshot, evaluate func(*domain.QuestionnaireSnapshot) (*domain.EvaluationResult, error)) (*domain.EvaluationResult, bool, error) {
	key, err := Fingerprint(snapshot)
	if err != nil {
		return nil, false, err
	}
	if result, ok := m.entries.Get(key); ok {
		return result, true, nil
	}

	result, err := evaluate(snapshot)
	if err != nil {
		return nil, false, err
	}
	m.entries.Add(key, result)
	return result, false, nil
}

// Len returns the number of live entries
func (m *EvaluationMemo) Len() int {
	return m.entries.Len()
}

// Purge drops every entry
func (m *EvaluationMemo) Purge() {
	m.entries.Purge()
}
