// Package responsible keeps the quick-pick list of delivery responsibles on the local store.
package responsible

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/semed/merenda/core"
)

// StorageKey names the store entry holding the JSON array of responsibles.
const StorageKey = "semed_delivery_responsibles"

var ErrNotFound = errors.New("responsible not found")

type Responsible struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

// Book is the quick-pick list. It is read from the store on load and rewritten wholesale on every change.
type Book struct {
	kv        core.KVStore
	validator *core.Validator
	logger    core.Logger

	mu    sync.Mutex
	items []Responsible
}

// Load reads the list from kv; a missing or unreadable entry yields an empty list.
func Load(kv core.KVStore, validator *core.Validator, logger core.Logger) *Book {
	if validator == nil {
		validator = core.NewValidator()
	}
	if logger == nil {
		logger = core.NopLogger
	}
	b := &Book{kv: kv, validator: validator, logger: logger}

	raw, err := kv.Get(StorageKey)
	if err != nil {
		if errors.Cause(err) != core.ErrKeyNotFound {
			logger.Warn("reading responsibles", err)
		}
		return b
	}
	if err := json.Unmarshal([]byte(raw), &b.items); err != nil {
		logger.Warn("decoding responsibles", err)
		b.items = nil
	}
	return b
}

// List returns a copy of the responsibles, most recently added first.
func (b *Book) List() []Responsible {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]Responsible, len(b.items))
	copy(items, b.items)
	return items
}

func (b *Book) Get(id string) (Responsible, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.items {
		if r.ID == id {
			return r, nil
		}
	}
	return Responsible{}, ErrNotFound
}

// Add prepends a new responsible, dropping any entry with the same name and phone.
func (b *Book) Add(name, phone string) (Responsible, error) {
	r := Responsible{
		ID:    uuid.New().String(),
		Name:  core.CleanString(name),
		Phone: core.CleanString(phone),
	}
	if err := b.validator.Struct(r); err != nil {
		return Responsible{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	next := make([]Responsible, 0, len(b.items)+1)
	next = append(next, r)
	for _, item := range b.items {
		if item.Name == r.Name && item.Phone == r.Phone {
			continue
		}
		next = append(next, item)
	}
	if err := b.persist(next); err != nil {
		return Responsible{}, err
	}
	return r, nil
}

// Remove drops the responsible with the given id. Removing an unknown id is not an error.
func (b *Book) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make([]Responsible, 0, len(b.items))
	for _, item := range b.items {
		if item.ID != id {
			next = append(next, item)
		}
	}
	return b.persist(next)
}

func (b *Book) persist(items []Responsible) error {
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "encoding responsibles")
	}
	if err := b.kv.Set(StorageKey, string(data)); err != nil {
		return errors.Wrap(err, "saving responsibles")
	}
	b.items = items
	return nil
}

// Match returns the responsibles whose name or phone resembles query, best first.
func (b *Book) Match(query string) []Responsible {
	query = strings.ToLower(core.CleanString(query))
	items := b.List()
	if query == "" {
		return items
	}

	type scored struct {
		r     Responsible
		score float64
	}
	var hits []scored
	for _, r := range items {
		if s := score(query, r); s >= minScore {
			hits = append(hits, scored{r, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	res := make([]Responsible, len(hits))
	for i, h := range hits {
		res[i] = h.r
	}
	return res
}

const minScore = 0.6

func score(query string, r Responsible) float64 {
	best := 0.0
	for _, field := range []string{strings.ToLower(r.Name), r.Phone} {
		if field == "" {
			continue
		}
		if strings.Contains(field, query) {
			return 1
		}
		sm := difflib.NewMatcher(splitChars(query), splitChars(field))
		if ratio := sm.Ratio(); ratio > best {
			best = ratio
		}
	}
	return best
}

func splitChars(s string) []string {
	return strings.Split(s, "")
}
