package itemstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fundwit/go-commons/types"
)

// MemoryStore keeps collections in process memory. It backs tests and single
// node deployments started with STORE_DRIVER=memory.
type MemoryStore struct {
	lock        sync.RWMutex
	lastID      types.ID
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	order []types.ID
	items map[types.ID]Fields
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]*memoryCollection{}}
}

// ensureCollection creates a missing collection. Callers hold the write lock.
func (s *MemoryStore) ensureCollection(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{items: map[types.ID]Fields{}}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Insert(ctx context.Context, collection string, fields Fields) (types.ID, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.lastID++
	id := s.lastID
	record := copyFields(fields)
	record["id"] = id

	c := s.ensureCollection(collection)
	c.items[id] = record
	c.order = append(c.order, id)
	return id, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, collection string, id types.ID) (*Item, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, ErrItemNotFound
	}
	record, ok := c.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &Item{ID: id, Fields: copyFields(record)}, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Item, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	items := []Item{}
	c, ok := s.collections[collection]
	if !ok {
		return items, nil
	}
	for _, id := range c.order {
		record := c.items[id]
		if Matches(record, q.Where...) {
			items = append(items, Item{ID: id, Fields: copyFields(record)})
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(items, func(i, j int) bool {
			return lessForOrder(items[i].Fields[q.OrderBy], items[j].Fields[q.OrderBy], q.Descending)
		})
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection string, id types.ID, fields Fields, guards ...Predicate) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return ErrItemNotFound
	}
	record, ok := c.items[id]
	if !ok {
		return ErrItemNotFound
	}
	if !Matches(record, guards...) {
		return ErrGuardFailed
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		record[k] = copyValue(v)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, id types.ID) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return ErrItemNotFound
	}
	if _, ok := c.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// null values sort last.
func lessForOrder(a, b interface{}, desc bool) bool {
	if isNil(a) || isNil(b) {
		return !isNil(a) && isNil(b)
	}
	c, ok := compareValues(a, b)
	if !ok {
		return false
	}
	if desc {
		return c > 0
	}
	return c < 0
}

func copyFields(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil
		}
		c := *t
		return c
	}
	return v
}
