package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/krogetapp/kroget/internal/domain/models"
)

const (
	maxSessions  = 20
	staleLockAge = 10 * time.Minute
)

// LedgerRepository is the durable sent-items ledger: one cumulative record
// per (productId, locationId) pair plus a bounded history of apply sessions.
type LedgerRepository struct {
	path     string
	lockPath string
	mu       sync.Mutex
}

// NewLedgerRepository builds a ledger repository rooted at dataDir.
func NewLedgerRepository(dataDir string) *LedgerRepository {
	path := filepath.Join(dataDir, "ledger.json")
	return &LedgerRepository{
		path:     path,
		lockPath: path + ".lock",
	}
}

type ledgerDoc struct {
	Items    map[string]models.SentItemRecord `json:"items"`
	Sessions []models.ApplySession            `json:"sessions,omitempty"`
}

func ledgerKey(productID, locationID string) string {
	return productID + "@" + locationID
}

func (r *LedgerRepository) load() (ledgerDoc, error) {
	doc := ledgerDoc{Items: make(map[string]models.SentItemRecord)}
	if _, err := readJSON(r.path, &doc); err != nil {
		return ledgerDoc{}, err
	}
	if doc.Items == nil {
		doc.Items = make(map[string]models.SentItemRecord)
	}
	return doc, nil
}

// Lookup returns the cumulative quantity previously sent for the pair,
// zero when no record exists.
func (r *LedgerRepository) Lookup(productID, locationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return 0, err
	}
	return doc.Items[ledgerKey(productID, locationID)].QuantitySent, nil
}

// Record upserts the pair's record, adding delta to the cumulative quantity
// and advancing the applied-at timestamp. The write is durable before return.
func (r *LedgerRepository) Record(productID, locationID string, delta int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	key := ledgerKey(productID, locationID)
	record := doc.Items[key]
	record.ProductID = productID
	record.LocationID = locationID
	record.QuantitySent += delta
	record.AppliedAt = at
	doc.Items[key] = record
	return writeJSONAtomic(r.path, doc)
}

// AppendSession prepends an apply session to the history, keeping only the
// most recent entries.
func (r *LedgerRepository) AppendSession(session models.ApplySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	doc.Sessions = append([]models.ApplySession{session}, doc.Sessions...)
	if len(doc.Sessions) > maxSessions {
		doc.Sessions = doc.Sessions[:maxSessions]
	}
	return writeJSONAtomic(r.path, doc)
}

// Sessions returns up to limit most-recent apply sessions, newest first.
func (r *LedgerRepository) Sessions(limit int) ([]models.ApplySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(doc.Sessions) {
		limit = len(doc.Sessions)
	}
	return doc.Sessions[:limit], nil
}

// Acquire takes the advisory write lock guarding apply runs against
// concurrent processes. A lock file older than staleLockAge is treated as
// abandoned and taken over. The returned release function removes the lock.
func (r *LedgerRepository) Acquire() (func(), error) {
	for attempt := 0; attempt < 2; attempt++ {
		if err := os.MkdirAll(filepath.Dir(r.lockPath), 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w: %w", ErrPersistence, err)
		}
		lock, err := os.OpenFile(r.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = lock.WriteString(strconv.Itoa(os.Getpid()))
			_ = lock.Close()
			return func() { _ = os.Remove(r.lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquire ledger lock: %w: %w", ErrPersistence, err)
		}
		info, statErr := os.Stat(r.lockPath)
		if statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			_ = os.Remove(r.lockPath)
			continue
		}
		return nil, fmt.Errorf("ledger is locked by another apply run (%s)", r.lockPath)
	}
	return nil, fmt.Errorf("ledger is locked by another apply run (%s)", r.lockPath)
}
