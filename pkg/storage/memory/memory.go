// Package memory is an in-memory Storage used by tests and by scans run
// without a database file.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/mediascout/mediascout/pkg/storage"
)

type Memory struct {
	mu     sync.RWMutex
	nextID int64
	shows  map[int64]*storage.Show
}

func New() *Memory {
	return &Memory{
		nextID: 1,
		shows:  make(map[int64]*storage.Show),
	}
}

func (m *Memory) GetShowByPath(ctx context.Context, path string) (*storage.Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, show := range m.shows {
		if show.Path == path {
			return show.Clone(), nil
		}
	}

	return nil, storage.ErrNotFound
}

func (m *Memory) ListShows(ctx context.Context, datasource string) ([]*storage.Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*storage.Show
	for _, show := range m.shows {
		if datasource != "" && show.Datasource != datasource {
			continue
		}
		out = append(out, show.Clone())
	}

	slices.SortFunc(out, func(a, b *storage.Show) int {
		return strings.Compare(a.Path, b.Path)
	})

	return out, nil
}

func (m *Memory) SaveShow(ctx context.Context, show *storage.Show) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := show.Clone()
	if cp.ID == 0 {
		cp.ID = m.nextID
		m.nextID++
	}

	for _, e := range cp.Episodes {
		if e.ID == 0 {
			e.ID = m.nextID
			m.nextID++
		}
	}

	m.shows[cp.ID] = cp
	show.ID = cp.ID
	return cp.ID, nil
}

func (m *Memory) DeleteShow(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shows[id]; !ok {
		return storage.ErrNotFound
	}

	delete(m.shows, id)
	return nil
}
