package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/KaramelBytes/excelytics/internal/chart"
)

// Memory keeps records in process memory. Records are copied on the way in
// and out so callers never share state with the store.
type Memory struct {
	mu    sync.RWMutex
	files map[string]*FileRecord
}

func NewMemory() *Memory {
	return &Memory{files: map[string]*FileRecord{}}
}

func (m *Memory) CreateFile(_ context.Context, f *FileRecord) error {
	prepareFile(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = clone(f)
	return nil
}

func (m *Memory) GetFile(_ context.Context, owner, id string) (*FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok || f.OwnerID != owner {
		return nil, notFound("file", id)
	}
	return clone(f), nil
}

func (m *Memory) ListFiles(_ context.Context, owner string) ([]FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []FileRecord{}
	for _, f := range m.files {
		if f.OwnerID == owner {
			out = append(out, *clone(f))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) DeleteFile(_ context.Context, owner, id string) (*FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.OwnerID != owner {
		return nil, notFound("file", id)
	}
	delete(m.files, id)
	return f, nil
}

func (m *Memory) AppendChart(_ context.Context, owner, fileID string, c *ChartRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.OwnerID != owner {
		return notFound("file", fileID)
	}
	prepareChart(c)
	f.Charts = append(f.Charts, cloneChart(*c))
	return nil
}

func (m *Memory) DeleteChart(_ context.Context, owner, fileID, chartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.OwnerID != owner {
		return notFound("file", fileID)
	}
	charts, ok := removeChart(f.Charts, chartID)
	if !ok {
		return notFound("chart", chartID)
	}
	f.Charts = charts
	return nil
}

func (m *Memory) Close() error { return nil }

// clone deep-copies a record through its JSON form.
func clone(f *FileRecord) *FileRecord {
	b, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	var out FileRecord
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

func cloneChart(c ChartRecord) ChartRecord {
	c.Config.Filters = append([]chart.Filter{}, c.Config.Filters...)
	return c
}

func removeChart(charts []ChartRecord, id string) ([]ChartRecord, bool) {
	for i, c := range charts {
		if c.ID == id {
			return append(charts[:i:i], charts[i+1:]...), true
		}
	}
	return charts, false
}

func sortNewestFirst(files []FileRecord) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].UploadedAt.Equal(files[j].UploadedAt) {
			return files[i].UploadedAt.After(files[j].UploadedAt)
		}
		return files[i].ID < files[j].ID
	})
}
