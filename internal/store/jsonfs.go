package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/KaramelBytes/excelytics/internal/utils"
)

const recordExt = ".json"

// JSONFS stores one pretty-printed JSON document per file under dir,
// written atomically.
type JSONFS struct {
	dir string
	mu  sync.Mutex
}

// NewJSONFS creates dir if needed and returns a store rooted there.
func NewJSONFS(dir string) (*JSONFS, error) {
	if dir == "" {
		return nil, errors.New("jsonfs: data dir is required")
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("jsonfs: ensure dir: %w", err)
	}
	return &JSONFS{dir: dir}, nil
}

func (s *JSONFS) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", notFound("file", id)
	}
	return filepath.Join(s.dir, id+recordExt), nil
}

func (s *JSONFS) read(id string) (*FileRecord, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound("file", id)
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	var f FileRecord
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse record %s: %w", id, err)
	}
	return &f, nil
}

func (s *JSONFS) write(f *FileRecord) error {
	p, err := s.path(f.ID)
	if err != nil {
		return err
	}
	data, err := utils.PrettyJSON(f)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(p, data)
}

// owned reads id and checks it belongs to owner.
func (s *JSONFS) owned(owner, id string) (*FileRecord, error) {
	f, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if f.OwnerID != owner {
		return nil, notFound("file", id)
	}
	return f, nil
}

func (s *JSONFS) CreateFile(_ context.Context, f *FileRecord) error {
	prepareFile(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(f)
}

func (s *JSONFS) GetFile(_ context.Context, owner, id string) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned(owner, id)
}

func (s *JSONFS) ListFiles(ctx context.Context, owner string) ([]FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	out := []FileRecord{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := s.read(strings.TrimSuffix(name, recordExt))
		if err != nil {
			return nil, err
		}
		if f.OwnerID == owner {
			out = append(out, *f)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *JSONFS) DeleteFile(_ context.Context, owner, id string) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.owned(owner, id)
	if err != nil {
		return nil, err
	}
	p, _ := s.path(id)
	if err := os.Remove(p); err != nil {
		return nil, fmt.Errorf("remove record: %w", err)
	}
	return f, nil
}

func (s *JSONFS) AppendChart(_ context.Context, owner, fileID string, c *ChartRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.owned(owner, fileID)
	if err != nil {
		return err
	}
	prepareChart(c)
	f.Charts = append(f.Charts, *c)
	return s.write(f)
}

func (s *JSONFS) DeleteChart(_ context.Context, owner, fileID, chartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.owned(owner, fileID)
	if err != nil {
		return err
	}
	charts, ok := removeChart(f.Charts, chartID)
	if !ok {
		return notFound("chart", chartID)
	}
	f.Charts = charts
	return s.write(f)
}

func (s *JSONFS) Close() error { return nil }
