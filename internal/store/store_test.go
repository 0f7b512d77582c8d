package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/excelytics/internal/chart"
	"github.com/KaramelBytes/excelytics/internal/sheet"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"jsonfs": func(t *testing.T) Store {
			s, err := NewJSONFS(filepath.Join(t.TempDir(), "data"))
			if err != nil {
				t.Fatalf("NewJSONFS: %v", err)
			}
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLite(filepath.Join(t.TempDir(), "db", "test.db"))
			if err != nil {
				t.Fatalf("NewSQLite: %v", err)
			}
			return s
		},
	}
}

func sampleFile(owner, name string, at time.Time) *FileRecord {
	return &FileRecord{
		OwnerID:      owner,
		OriginalName: name,
		StoredPath:   "/tmp/" + name,
		Size:         42,
		Sheets: []sheet.SheetSummary{{
			Name:     "Sales",
			Columns:  []string{"Region", "Revenue"},
			RowCount: 1,
			PreviewRows: [][]sheet.CellValue{
				{sheet.Text("Region"), sheet.Text("Revenue")},
				{sheet.Text("North"), sheet.Number(10.5)},
			},
		}},
		UploadedAt: at,
	}
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			older := sampleFile("alice", "old.csv", base)
			newer := sampleFile("alice", "new.xlsx", base.Add(time.Hour))
			other := sampleFile("bob", "bob.csv", base.Add(2*time.Hour))
			for _, f := range []*FileRecord{older, newer, other} {
				if err := s.CreateFile(ctx, f); err != nil {
					t.Fatalf("CreateFile: %v", err)
				}
				if f.ID == "" {
					t.Fatalf("CreateFile did not assign an id")
				}
			}

			got, err := s.GetFile(ctx, "alice", older.ID)
			if err != nil {
				t.Fatalf("GetFile: %v", err)
			}
			if got.OriginalName != "old.csv" || got.Size != 42 || !got.UploadedAt.Equal(base) {
				t.Fatalf("unexpected record: %+v", got)
			}
			if len(got.Sheets) != 1 || !got.Sheets[0].PreviewRows[1][1].Equal(sheet.Number(10.5)) {
				t.Fatalf("sheet summary did not survive: %+v", got.Sheets)
			}
			if got.Charts == nil {
				t.Fatalf("charts should be an empty list, got nil")
			}

			if _, err := s.GetFile(ctx, "bob", older.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("other owner should not see the file, got %v", err)
			}

			list, err := s.ListFiles(ctx, "alice")
			if err != nil {
				t.Fatalf("ListFiles: %v", err)
			}
			if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
				t.Fatalf("expected newest first, got %+v", list)
			}
			empty, err := s.ListFiles(ctx, "nobody")
			if err != nil || len(empty) != 0 {
				t.Fatalf("expected no files, got %v %v", empty, err)
			}

			rec := &ChartRecord{
				Title: "Revenue by region",
				Type:  "bar",
				Config: chart.Config{
					Sheet:       "Sales",
					XAxis:       "Region",
					YAxis:       "Revenue",
					Aggregation: chart.AggAverage,
					Filters: []chart.Filter{
						{Column: "Revenue", Operator: chart.OpGreater, Value: sheet.Number(5)},
					},
				},
			}
			if err := s.AppendChart(ctx, "alice", older.ID, rec); err != nil {
				t.Fatalf("AppendChart: %v", err)
			}
			if rec.ID == "" || rec.CreatedAt.IsZero() {
				t.Fatalf("AppendChart did not assign id/time: %+v", rec)
			}
			if err := s.AppendChart(ctx, "bob", older.ID, &ChartRecord{Type: "bar"}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("append for other owner: want ErrNotFound, got %v", err)
			}

			got, err = s.GetFile(ctx, "alice", older.ID)
			if err != nil {
				t.Fatalf("GetFile: %v", err)
			}
			if len(got.Charts) != 1 {
				t.Fatalf("expected one chart, got %d", len(got.Charts))
			}
			spec := got.Charts[0].Specification()
			if spec.ChartType != "bar" || spec.XAxis != "Region" || spec.Aggregation != chart.AggAverage {
				t.Fatalf("unexpected specification: %+v", spec)
			}
			if len(spec.Filters) != 1 || !spec.Filters[0].Value.Equal(sheet.Number(5)) {
				t.Fatalf("filter value did not survive: %+v", spec.Filters)
			}

			if err := s.DeleteChart(ctx, "alice", older.ID, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("delete missing chart: want ErrNotFound, got %v", err)
			}
			if err := s.DeleteChart(ctx, "alice", older.ID, rec.ID); err != nil {
				t.Fatalf("DeleteChart: %v", err)
			}
			got, _ = s.GetFile(ctx, "alice", older.ID)
			if len(got.Charts) != 0 {
				t.Fatalf("chart not removed: %+v", got.Charts)
			}

			if _, err := s.DeleteFile(ctx, "bob", older.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("delete by other owner: want ErrNotFound, got %v", err)
			}
			removed, err := s.DeleteFile(ctx, "alice", older.ID)
			if err != nil {
				t.Fatalf("DeleteFile: %v", err)
			}
			if removed.StoredPath != "/tmp/old.csv" {
				t.Fatalf("DeleteFile should return the record, got %+v", removed)
			}
			if _, err := s.GetFile(ctx, "alice", older.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("deleted file still readable: %v", err)
			}
		})
	}
}

func TestStoreCopiesRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	f := sampleFile("alice", "a.csv", time.Now())
	if err := s.CreateFile(ctx, f); err != nil {
		t.Fatal(err)
	}
	f.OriginalName = "changed"
	got, _ := s.GetFile(ctx, "alice", f.ID)
	if got.OriginalName != "a.csv" {
		t.Fatalf("store shares state with caller: %q", got.OriginalName)
	}
}

func TestJSONFSRejectsPathIDs(t *testing.T) {
	s, err := NewJSONFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetFile(context.Background(), "alice", "../etc/passwd"); err == nil {
		t.Fatalf("expected error for path-like id")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", s)
	}
	s, err = Open(ctx, Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open default: %v", err)
	}
	if _, ok := s.(*JSONFS); !ok {
		t.Fatalf("expected jsonfs by default, got %T", s)
	}
	if _, err := Open(ctx, Options{Driver: "redis"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestMongoDocumentConversion(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := sampleFile("alice", "a.csv", at)
	f.ID = "file-1"
	f.Charts = []ChartRecord{{
		ID:        "chart-1",
		Title:     "t",
		Type:      "pie",
		CreatedAt: at,
		Config: chart.Config{
			Sheet: "Sales", XAxis: "Region", YAxis: "Revenue", Aggregation: chart.AggSum,
			Filters: []chart.Filter{{Column: "Region", Operator: chart.OpEquals, Value: sheet.Text("North")}},
		},
	}}
	doc, err := toFileDoc(f)
	if err != nil {
		t.Fatalf("toFileDoc: %v", err)
	}
	back, err := doc.record()
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if back.ID != "file-1" || back.OwnerID != "alice" || !back.UploadedAt.Equal(at) {
		t.Fatalf("unexpected record: %+v", back)
	}
	cell := back.Sheets[0].PreviewRows[1][1]
	if !cell.Equal(sheet.Number(10.5)) {
		t.Fatalf("numeric cell changed: %v (%v)", cell, cell.Kind())
	}
	if !back.Sheets[0].PreviewRows[0][0].Equal(sheet.Text("Region")) {
		t.Fatalf("text cell changed: %v", back.Sheets[0].PreviewRows[0][0])
	}
	cfg := back.Charts[0].Config
	if cfg.XAxis != "Region" || len(cfg.Filters) != 1 || !cfg.Filters[0].Value.Equal(sheet.Text("North")) {
		t.Fatalf("chart config changed: %+v", cfg)
	}
}
