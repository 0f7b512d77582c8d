// Package store persists uploaded file metadata and saved chart
// specifications. Chart data is never stored; it is regenerated from the
// stored file and specification.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/excelytics/internal/chart"
	"github.com/KaramelBytes/excelytics/internal/sheet"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a file or chart does not exist for the owner.
var ErrNotFound = errors.New("not found")

// ChartRecord is a saved chart specification.
type ChartRecord struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Type      string       `json:"type"`
	Config    chart.Config `json:"config"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Specification rebuilds the chart specification the record was saved from.
func (c ChartRecord) Specification() chart.Specification {
	return chart.Specification{
		Sheet:       c.Config.Sheet,
		ChartType:   c.Type,
		XAxis:       c.Config.XAxis,
		YAxis:       c.Config.YAxis,
		ZAxis:       c.Config.ZAxis,
		Aggregation: c.Config.Aggregation,
		Filters:     c.Config.Filters,
		Title:       c.Title,
	}
}

// NewChartRecord captures a generated chart for saving.
func NewChartRecord(res *chart.Result) ChartRecord {
	return ChartRecord{Title: res.Title, Type: res.Type, Config: res.Config}
}

// FileRecord is one uploaded spreadsheet owned by a user.
type FileRecord struct {
	ID           string               `json:"id"`
	OwnerID      string               `json:"ownerId"`
	OriginalName string               `json:"originalName"`
	StoredPath   string               `json:"storedPath"`
	Size         int64                `json:"size"`
	Sheets       []sheet.SheetSummary `json:"sheets"`
	Charts       []ChartRecord        `json:"charts"`
	UploadedAt   time.Time            `json:"uploadedAt"`
}

// Store is implemented by every persistence backend. All lookups are scoped
// to an owner: a record owned by someone else reads as ErrNotFound.
type Store interface {
	// CreateFile inserts f, assigning ID and UploadedAt when unset.
	CreateFile(ctx context.Context, f *FileRecord) error
	GetFile(ctx context.Context, owner, id string) (*FileRecord, error)
	// ListFiles returns the owner's files, newest first.
	ListFiles(ctx context.Context, owner string) ([]FileRecord, error)
	// DeleteFile removes the record and returns it so the caller can remove
	// the stored spreadsheet.
	DeleteFile(ctx context.Context, owner, id string) (*FileRecord, error)
	// AppendChart adds c to the file's charts, assigning ID and CreatedAt.
	AppendChart(ctx context.Context, owner, fileID string, c *ChartRecord) error
	DeleteChart(ctx context.Context, owner, fileID, chartID string) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverJSONFS = "jsonfs"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Options selects and configures a backend.
type Options struct {
	Driver        string
	DataDir       string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// Open returns the backend named by opt.Driver.
func Open(ctx context.Context, opt Options) (Store, error) {
	switch opt.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverJSONFS, "":
		return NewJSONFS(opt.DataDir)
	case DriverSQLite:
		return NewSQLite(opt.SQLitePath)
	case DriverMongo:
		return NewMongo(ctx, opt.MongoURI, opt.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opt.Driver)
	}
}

func prepareFile(f *FileRecord) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	if f.Sheets == nil {
		f.Sheets = []sheet.SheetSummary{}
	}
	if f.Charts == nil {
		f.Charts = []ChartRecord{}
	}
}

func prepareChart(c *ChartRecord) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Config.Filters == nil {
		c.Config.Filters = []chart.Filter{}
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
