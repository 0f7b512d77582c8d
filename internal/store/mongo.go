package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KaramelBytes/excelytics/internal/chart"
	"github.com/KaramelBytes/excelytics/internal/sheet"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const filesCollection = "files"

// Mongo stores one document per file with its charts embedded.
type Mongo struct {
	client *mongo.Client
	files  *mongo.Collection
}

// fileDoc is the stored shape. Sheet summaries and chart configs carry
// spreadsheet cell values, so they are kept as documents converted from
// their JSON form.
type fileDoc struct {
	ID           string     `bson:"_id"`
	OwnerID      string     `bson:"ownerId"`
	OriginalName string     `bson:"originalName"`
	StoredPath   string     `bson:"storedPath"`
	Size         int64      `bson:"size"`
	Sheets       []bson.Raw `bson:"sheets"`
	Charts       []chartDoc `bson:"charts"`
	UploadedAt   time.Time  `bson:"uploadedAt"`
}

type chartDoc struct {
	ID        string    `bson:"id"`
	Title     string    `bson:"title"`
	Type      string    `bson:"type"`
	Config    bson.Raw  `bson:"config"`
	CreatedAt time.Time `bson:"createdAt"`
}

// NewMongo connects to uri and verifies the server answers a ping.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("mongo: uri is required")
	}
	if database == "" {
		database = "excelytics"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	files := client.Database(database).Collection(filesCollection)
	if _, err := files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "uploadedAt", Value: -1}},
	}); err != nil {
		slog.Warn("mongo: create index failed", "error", err)
	}
	return &Mongo{client: client, files: files}, nil
}

func (m *Mongo) CreateFile(ctx context.Context, f *FileRecord) error {
	prepareFile(f)
	for i := range f.Charts {
		prepareChart(&f.Charts[i])
	}
	doc, err := toFileDoc(f)
	if err != nil {
		return err
	}
	if _, err := m.files.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func ownerFilter(owner, id string) bson.M {
	return bson.M{"_id": id, "ownerId": owner}
}

func (m *Mongo) GetFile(ctx context.Context, owner, id string) (*FileRecord, error) {
	var doc fileDoc
	err := m.files.FindOne(ctx, ownerFilter(owner, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("file", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return doc.record()
}

func (m *Mongo) ListFiles(ctx context.Context, owner string) ([]FileRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := m.files.Find(ctx, bson.M{"ownerId": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	var docs []fileDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	out := make([]FileRecord, 0, len(docs))
	for _, d := range docs {
		f, err := d.record()
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, nil
}

func (m *Mongo) DeleteFile(ctx context.Context, owner, id string) (*FileRecord, error) {
	var doc fileDoc
	err := m.files.FindOneAndDelete(ctx, ownerFilter(owner, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("file", id)
	}
	if err != nil {
		return nil, fmt.Errorf("delete file: %w", err)
	}
	return doc.record()
}

func (m *Mongo) AppendChart(ctx context.Context, owner, fileID string, c *ChartRecord) error {
	prepareChart(c)
	cd, err := toChartDoc(*c)
	if err != nil {
		return err
	}
	res, err := m.files.UpdateOne(ctx, ownerFilter(owner, fileID), bson.M{"$push": bson.M{"charts": cd}})
	if err != nil {
		return fmt.Errorf("append chart: %w", err)
	}
	if res.MatchedCount == 0 {
		return notFound("file", fileID)
	}
	return nil
}

func (m *Mongo) DeleteChart(ctx context.Context, owner, fileID, chartID string) error {
	filter := ownerFilter(owner, fileID)
	filter["charts.id"] = chartID
	res, err := m.files.UpdateOne(ctx, filter, bson.M{"$pull": bson.M{"charts": bson.M{"id": chartID}}})
	if err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := m.GetFile(ctx, owner, fileID); err != nil {
			return err
		}
		return notFound("chart", chartID)
	}
	return nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func toFileDoc(f *FileRecord) (*fileDoc, error) {
	doc := &fileDoc{
		ID:           f.ID,
		OwnerID:      f.OwnerID,
		OriginalName: f.OriginalName,
		StoredPath:   f.StoredPath,
		Size:         f.Size,
		Sheets:       make([]bson.Raw, 0, len(f.Sheets)),
		Charts:       make([]chartDoc, 0, len(f.Charts)),
		UploadedAt:   f.UploadedAt,
	}
	for _, s := range f.Sheets {
		raw, err := jsonToRaw(s)
		if err != nil {
			return nil, fmt.Errorf("encode sheet %q: %w", s.Name, err)
		}
		doc.Sheets = append(doc.Sheets, raw)
	}
	for _, c := range f.Charts {
		cd, err := toChartDoc(c)
		if err != nil {
			return nil, err
		}
		doc.Charts = append(doc.Charts, cd)
	}
	return doc, nil
}

func toChartDoc(c ChartRecord) (chartDoc, error) {
	cfg, err := jsonToRaw(c.Config)
	if err != nil {
		return chartDoc{}, fmt.Errorf("encode chart %s: %w", c.ID, err)
	}
	return chartDoc{ID: c.ID, Title: c.Title, Type: c.Type, Config: cfg, CreatedAt: c.CreatedAt}, nil
}

func (d *fileDoc) record() (*FileRecord, error) {
	f := &FileRecord{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		OriginalName: d.OriginalName,
		StoredPath:   d.StoredPath,
		Size:         d.Size,
		Sheets:       make([]sheet.SheetSummary, len(d.Sheets)),
		Charts:       make([]ChartRecord, 0, len(d.Charts)),
		UploadedAt:   d.UploadedAt.UTC(),
	}
	for i, raw := range d.Sheets {
		if err := rawToJSON(raw, &f.Sheets[i]); err != nil {
			return nil, fmt.Errorf("decode sheet of %s: %w", d.ID, err)
		}
	}
	for _, cd := range d.Charts {
		c := ChartRecord{ID: cd.ID, Title: cd.Title, Type: cd.Type, CreatedAt: cd.CreatedAt.UTC()}
		if err := rawToJSON(cd.Config, &c.Config); err != nil {
			return nil, fmt.Errorf("decode chart %s: %w", cd.ID, err)
		}
		if c.Config.Filters == nil {
			c.Config.Filters = []chart.Filter{}
		}
		f.Charts = append(f.Charts, c)
	}
	return f, nil
}

// jsonToRaw converts v's JSON encoding into a BSON document.
func jsonToRaw(v any) (bson.Raw, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(b, false, &d); err != nil {
		return nil, err
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, err
	}
	return bson.Raw(raw), nil
}

// rawToJSON decodes a BSON document into v through relaxed extended JSON.
func rawToJSON(raw bson.Raw, v any) error {
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
