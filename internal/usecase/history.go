package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/nutriscan/backend/internal/domain"
)

// History is the ordered list of a user's food items: newest scanDate
// first, ids unique. It is not safe for concurrent use.
type History struct {
	items []domain.FoodItem
}

// NewHistory builds a history from items in any order. Later duplicates of
// an id are dropped.
func NewHistory(items []domain.FoodItem) *History {
	h := &History{}
	for _, item := range items {
		h.Insert(item)
	}
	return h
}

// Insert places item by scanDate, ahead of items with the same timestamp.
// It reports false when the id is already present.
func (h *History) Insert(item domain.FoodItem) bool {
	if h.indexOf(item.ID) >= 0 {
		return false
	}

	pos := sort.Search(len(h.items), func(i int) bool {
		return !h.items[i].ScanDate.After(item.ScanDate)
	})

	h.items = append(h.items, domain.FoodItem{})
	copy(h.items[pos+1:], h.items[pos:])
	h.items[pos] = item.Clone()
	return true
}

// Get returns a copy of the item with id
func (h *History) Get(id string) (domain.FoodItem, bool) {
	if i := h.indexOf(id); i >= 0 {
		return h.items[i].Clone(), true
	}
	return domain.FoodItem{}, false
}

// Update applies fn to the item with id in place. The id and scanDate
// cannot be changed through fn.
func (h *History) Update(id string, fn func(item *domain.FoodItem)) bool {
	i := h.indexOf(id)
	if i < 0 {
		return false
	}

	item := h.items[i].Clone()
	fn(&item)
	item.ID = h.items[i].ID
	item.ScanDate = h.items[i].ScanDate
	h.items[i] = item
	return true
}

// Remove deletes the item with id and reports whether it was present
func (h *History) Remove(id string) bool {
	i := h.indexOf(id)
	if i < 0 {
		return false
	}
	h.items = append(h.items[:i], h.items[i+1:]...)
	return true
}

func (h *History) Contains(id string) bool {
	return h.indexOf(id) >= 0
}

func (h *History) Len() int {
	return len(h.items)
}

// Items returns a copy of every item, newest first
func (h *History) Items() []domain.FoodItem {
	out := make([]domain.FoodItem, len(h.items))
	for i, item := range h.items {
		out[i] = item.Clone()
	}
	return out
}

// NewID derives an item id from the scan time, adding a numeric suffix
// when another item already has it
func (h *History) NewID(at time.Time) string {
	base := at.UTC().Format(time.RFC3339Nano)
	id := base
	for n := 2; h.Contains(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

func (h *History) indexOf(id string) int {
	for i := range h.items {
		if h.items[i].ID == id {
			return i
		}
	}
	return -1
}
