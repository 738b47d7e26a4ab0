package file

import (
	"path/filepath"
	"sync"

	"github.com/krogetapp/kroget/internal/domain/models"
)

// TokenRepository persists one token record per credential scope family.
// It is read/write only; token lifecycle policy lives with its owner.
type TokenRepository struct {
	path string
	mu   sync.Mutex
}

// NewTokenRepository builds a token repository rooted at dataDir.
func NewTokenRepository(dataDir string) *TokenRepository {
	return &TokenRepository{path: filepath.Join(dataDir, "tokens.json")}
}

type tokensDoc map[models.TokenScope]models.TokenRecord

// Load returns the stored record for a scope, or nil when absent.
func (r *TokenRepository) Load(scope models.TokenScope) (*models.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := make(tokensDoc)
	if _, err := readJSON(r.path, &doc); err != nil {
		return nil, err
	}
	record, ok := doc[scope]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Save durably replaces the record for the record's scope.
func (r *TokenRepository) Save(record models.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := make(tokensDoc)
	if _, err := readJSON(r.path, &doc); err != nil {
		return err
	}
	doc[record.Scope] = record
	return writeJSONAtomic(r.path, doc)
}

// Delete drops the record for a scope, if present.
func (r *TokenRepository) Delete(scope models.TokenScope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := make(tokensDoc)
	found, err := readJSON(r.path, &doc)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	delete(doc, scope)
	return writeJSONAtomic(r.path, doc)
}
