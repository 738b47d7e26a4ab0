package file

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/krogetapp/kroget/internal/domain/models"
)

const defaultListName = "default"

// StaplesRepository persists named staple lists in a single JSON document.
type StaplesRepository struct {
	path string
	mu   sync.Mutex
}

// NewStaplesRepository builds a staples repository rooted at dataDir.
func NewStaplesRepository(dataDir string) *StaplesRepository {
	return &StaplesRepository{path: filepath.Join(dataDir, "staples.json")}
}

type staplesDoc struct {
	Lists      []models.StapleList `json:"lists"`
	ActiveList string              `json:"activeList,omitempty"`
}

// StapleUpdate carries the mutable staple fields; nil means "leave as is".
type StapleUpdate struct {
	SearchTerm         *string
	Quantity           *int
	Modality           *models.Modality
	PreferredProductID *string
}

func (r *StaplesRepository) load() (staplesDoc, error) {
	var doc staplesDoc
	if _, err := readJSON(r.path, &doc); err != nil {
		return staplesDoc{}, err
	}
	return doc, nil
}

func (doc *staplesDoc) listIndex(name string) int {
	for i := range doc.Lists {
		if doc.Lists[i].Name == name {
			return i
		}
	}
	return -1
}

// resolveListName maps the empty name onto the active list, creating the
// default list lazily on first use.
func (doc *staplesDoc) resolveListName(name string, createDefault bool) (string, error) {
	if name != "" {
		return name, nil
	}
	if doc.ActiveList != "" {
		return doc.ActiveList, nil
	}
	if len(doc.Lists) > 0 {
		return doc.Lists[0].Name, nil
	}
	if !createDefault {
		return "", fmt.Errorf("no staple lists exist: %w", ErrNotFound)
	}
	doc.Lists = append(doc.Lists, models.StapleList{Name: defaultListName})
	doc.ActiveList = defaultListName
	return defaultListName, nil
}

// Lists returns every staple list in stored order.
func (r *StaplesRepository) Lists() ([]models.StapleList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc.Lists, nil
}

// List returns one list by name; the empty name selects the active list.
func (r *StaplesRepository) List(name string) (models.StapleList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return models.StapleList{}, err
	}
	resolved, err := doc.resolveListName(name, false)
	if err != nil {
		return models.StapleList{}, err
	}
	idx := doc.listIndex(resolved)
	if idx < 0 {
		return models.StapleList{}, fmt.Errorf("list %q: %w", resolved, ErrNotFound)
	}
	return doc.Lists[idx], nil
}

// ActiveListName reports which list is currently active.
func (r *StaplesRepository) ActiveListName() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return "", err
	}
	return doc.resolveListName("", false)
}

// CreateList adds a new empty list.
func (r *StaplesRepository) CreateList(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	if doc.listIndex(name) >= 0 {
		return fmt.Errorf("list %q: %w", name, ErrExists)
	}
	doc.Lists = append(doc.Lists, models.StapleList{Name: name})
	if doc.ActiveList == "" {
		doc.ActiveList = name
	}
	return writeJSONAtomic(r.path, doc)
}

// RenameList renames a list, carrying the active marker along.
func (r *StaplesRepository) RenameList(oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	if doc.listIndex(newName) >= 0 {
		return fmt.Errorf("list %q: %w", newName, ErrExists)
	}
	idx := doc.listIndex(oldName)
	if idx < 0 {
		return fmt.Errorf("list %q: %w", oldName, ErrNotFound)
	}
	doc.Lists[idx].Name = newName
	if doc.ActiveList == oldName {
		doc.ActiveList = newName
	}
	return writeJSONAtomic(r.path, doc)
}

// DeleteList removes a list and clears the active marker if it pointed there.
func (r *StaplesRepository) DeleteList(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	idx := doc.listIndex(name)
	if idx < 0 {
		return fmt.Errorf("list %q: %w", name, ErrNotFound)
	}
	doc.Lists = append(doc.Lists[:idx], doc.Lists[idx+1:]...)
	if doc.ActiveList == name {
		doc.ActiveList = ""
		if len(doc.Lists) > 0 {
			doc.ActiveList = doc.Lists[0].Name
		}
	}
	return writeJSONAtomic(r.path, doc)
}

// SetActiveList marks the named list as active.
func (r *StaplesRepository) SetActiveList(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	if doc.listIndex(name) < 0 {
		return fmt.Errorf("list %q: %w", name, ErrNotFound)
	}
	doc.ActiveList = name
	return writeJSONAtomic(r.path, doc)
}

// AddStaple appends a staple to the named (or active) list. Staple names are
// unique within their list.
func (r *StaplesRepository) AddStaple(listName string, staple models.Staple) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	resolved, err := doc.resolveListName(listName, true)
	if err != nil {
		return err
	}
	idx := doc.listIndex(resolved)
	if idx < 0 {
		return fmt.Errorf("list %q: %w", resolved, ErrNotFound)
	}
	if _, ok := doc.Lists[idx].FindStaple(staple.Name); ok {
		return fmt.Errorf("staple %q: %w", staple.Name, ErrExists)
	}
	if staple.Quantity <= 0 {
		staple.Quantity = 1
	}
	if staple.Modality == "" {
		staple.Modality = models.ModalityPickup
	}
	doc.Lists[idx].Staples = append(doc.Lists[idx].Staples, staple)
	return writeJSONAtomic(r.path, doc)
}

// RemoveStaple deletes a staple from the named (or active) list.
func (r *StaplesRepository) RemoveStaple(listName, stapleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	resolved, err := doc.resolveListName(listName, false)
	if err != nil {
		return err
	}
	idx := doc.listIndex(resolved)
	if idx < 0 {
		return fmt.Errorf("list %q: %w", resolved, ErrNotFound)
	}
	staples := doc.Lists[idx].Staples
	for i := range staples {
		if staples[i].Name == stapleName {
			doc.Lists[idx].Staples = append(staples[:i], staples[i+1:]...)
			return writeJSONAtomic(r.path, doc)
		}
	}
	return fmt.Errorf("staple %q: %w", stapleName, ErrNotFound)
}

// UpdateStaple applies a partial update to one staple.
func (r *StaplesRepository) UpdateStaple(listName, stapleName string, update StapleUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	resolved, err := doc.resolveListName(listName, false)
	if err != nil {
		return err
	}
	idx := doc.listIndex(resolved)
	if idx < 0 {
		return fmt.Errorf("list %q: %w", resolved, ErrNotFound)
	}
	for i := range doc.Lists[idx].Staples {
		staple := &doc.Lists[idx].Staples[i]
		if staple.Name != stapleName {
			continue
		}
		if update.SearchTerm != nil {
			staple.SearchTerm = *update.SearchTerm
		}
		if update.Quantity != nil {
			staple.Quantity = *update.Quantity
		}
		if update.Modality != nil {
			staple.Modality = *update.Modality
		}
		if update.PreferredProductID != nil {
			staple.PreferredProductID = *update.PreferredProductID
		}
		return writeJSONAtomic(r.path, doc)
	}
	return fmt.Errorf("staple %q: %w", stapleName, ErrNotFound)
}

// PinPreferred records a resolved product id as a staple's preferred choice.
func (r *StaplesRepository) PinPreferred(listName, stapleName, productID string) error {
	return r.UpdateStaple(listName, stapleName, StapleUpdate{PreferredProductID: &productID})
}

// MoveStaple repositions a staple within its list. Position is clamped to
// the list bounds.
func (r *StaplesRepository) MoveStaple(listName, stapleName string, position int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	resolved, err := doc.resolveListName(listName, false)
	if err != nil {
		return err
	}
	idx := doc.listIndex(resolved)
	if idx < 0 {
		return fmt.Errorf("list %q: %w", resolved, ErrNotFound)
	}
	staples := doc.Lists[idx].Staples
	from := -1
	for i := range staples {
		if staples[i].Name == stapleName {
			from = i
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("staple %q: %w", stapleName, ErrNotFound)
	}
	if position < 0 {
		position = 0
	}
	if position >= len(staples) {
		position = len(staples) - 1
	}
	moved := staples[from]
	staples = append(staples[:from], staples[from+1:]...)
	staples = append(staples[:position], append([]models.Staple{moved}, staples[position:]...)...)
	doc.Lists[idx].Staples = staples
	return writeJSONAtomic(r.path, doc)
}
