package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/krogetapp/kroget/internal/domain/models"
)

// ProposalRepository persists proposal documents. A proposal file is written
// once and never modified; re-resolving staples produces a new proposal with
// a new id.
type ProposalRepository struct {
	dir string
}

// NewProposalRepository builds a proposal repository rooted at dataDir.
func NewProposalRepository(dataDir string) *ProposalRepository {
	return &ProposalRepository{dir: filepath.Join(dataDir, "proposals")}
}

func (r *ProposalRepository) pathFor(p *models.Proposal) string {
	stamp := p.CreatedAt.UTC().Format("20060102T150405Z")
	return filepath.Join(r.dir, fmt.Sprintf("%s-%s.json", stamp, p.ID))
}

// Save writes a new proposal document and returns its path. Overwriting an
// existing document is refused.
func (r *ProposalRepository) Save(p *models.Proposal) (string, error) {
	path := r.pathFor(p)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("proposal %s: %w", p.ID, ErrExists)
	}
	if err := writeJSONAtomic(path, p); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a proposal document from disk.
func (r *ProposalRepository) Load(path string) (*models.Proposal, error) {
	var p models.Proposal
	found, err := readJSON(path, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("proposal %s: %w", path, ErrNotFound)
	}
	return &p, nil
}

// Latest returns the most recently created proposal and its path. File names
// embed the creation timestamp, so lexical order is chronological order.
func (r *ProposalRepository) Latest() (*models.Proposal, string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("no proposals yet: %w", ErrNotFound)
		}
		return nil, "", fmt.Errorf("read proposals dir: %w: %w", ErrPersistence, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, "", fmt.Errorf("no proposals yet: %w", ErrNotFound)
	}
	sort.Strings(names)

	path := filepath.Join(r.dir, names[len(names)-1])
	p, err := r.Load(path)
	if err != nil {
		return nil, "", err
	}
	return p, path, nil
}
