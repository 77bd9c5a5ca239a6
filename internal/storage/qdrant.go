package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/oncodoc/internal/report"
)

// vectorName is the named vector holding report embeddings.
const vectorName = "content"

// pointNamespace derives Qdrant point UUIDs from non-UUID document IDs.
var pointNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e90-9a3c-1d2e3f405162")

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(ctx context.Context, cfg QdrantConfig) (*QdrantStorage, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	// Create Qdrant client using gRPC
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}

	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return storage, nil
}

func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error { return s.Health(ctx) }, newBackOff(ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection with cosine vectors and payload
// indexes if it does not exist. Idempotent.
func (s *QdrantStorage) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}
	return nil
}

// createPayloadIndexes creates indexes for all filterable fields.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context) error {
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{"patient_ref", qdrant.FieldType_FieldTypeKeyword},
		{"report_type", qdrant.FieldType_FieldTypeKeyword},
		{"embedding_source", qdrant.FieldType_FieldTypeKeyword},
		{"created_at", qdrant.FieldType_FieldTypeInteger},
	}

	for _, idx := range indexes {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", idx.field, err)
		}
	}
	return nil
}

// ClearCollection drops and recreates the collection.
func (s *QdrantStorage) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// pointID maps a document ID to a Qdrant point UUID. UUID document IDs are
// used as is.
func pointID(id string) *qdrant.PointId {
	if u, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(u.String())
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

// Upsert stores the document and its vector, replacing any point with the
// same ID. Retries with exponential backoff.
func (s *QdrantStorage) Upsert(ctx context.Context, doc *Document) error {
	if err := doc.validate(); err != nil {
		return err
	}
	if len(doc.Embedding) != s.dimension {
		return fmt.Errorf("%w: document has %d dimensions, expected %d",
			ErrDimensionMismatch, len(doc.Embedding), s.dimension)
	}

	findings, err := report.MarshalFindings(doc.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	flags := make([]any, len(doc.Flags))
	for i, f := range doc.Flags {
		flags[i] = f
	}

	point := &qdrant.PointStruct{
		Id: pointID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			vectorName: qdrant.NewVector(doc.Embedding...),
		}),
		Payload: qdrant.NewValueMap(map[string]any{
			"document_id":        doc.ID,
			"report_type":        string(doc.ReportType),
			"raw_content":        doc.RawContent,
			"normalized_content": doc.NormalizedContent,
			"findings_json":      string(findings),
			"flags":              flags,
			"doctor_summary":     doc.DoctorSummary,
			"patient_summary":    doc.PatientSummary,
			"embedding_source":   doc.EmbeddingSource,
			"patient_ref":        doc.PatientRef,
			"patient_id":         doc.PatientID,
			"source":             doc.Source,
			"created_at":         doc.CreatedAt.UnixMilli(),
		}),
	}

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         []*qdrant.PointStruct{point},
		})
		return err
	}
	if err := backoff.Retry(operation, newBackOff(ctx)); err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// Get retrieves a document by ID. The embedding is not returned.
func (s *QdrantStorage) Get(ctx context.Context, id string) (*Document, error) {
	result, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrDocumentNotFound
	}
	return documentFromPayload(result[0].Payload)
}

// Nearest performs cosine similarity search. Qdrant reports cosine
// similarity as the score, which is 1 - cosine distance.
func (s *QdrantStorage) Nearest(ctx context.Context, vector []float32, filter Filter, limit int) ([]ScoredDocument, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	var must []*qdrant.Condition
	if filter.PatientRef != "" {
		must = append(must, qdrant.NewMatch("patient_ref", filter.PatientRef))
	}
	if filter.ReportType != "" {
		must = append(must, qdrant.NewMatch("report_type", string(filter.ReportType)))
	}
	if filter.EmbeddingSource != "" {
		must = append(must, qdrant.NewMatch("embedding_source", filter.EmbeddingSource))
	}

	using := vectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &using,
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	scored := make([]ScoredDocument, 0, len(results))
	for _, result := range results {
		doc, err := documentFromPayload(result.Payload)
		if err != nil {
			return nil, err
		}
		scored = append(scored, ScoredDocument{Document: doc, Similarity: float64(result.Score)})
	}
	return scored, nil
}

// ListByPatient scrolls the patient's documents created at or after since.
func (s *QdrantStorage) ListByPatient(ctx context.Context, patientRef string, since time.Time) ([]*Document, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("patient_ref", patientRef),
			qdrant.NewRange("created_at", &qdrant.Range{Gte: qdrant.PtrOf(float64(since.UnixMilli()))}),
		},
	}

	var docs []*Document
	var decodeErr error
	err := s.scrollAll(ctx, filter, qdrant.NewWithPayload(true), func(p *qdrant.RetrievedPoint) {
		if decodeErr != nil {
			return
		}
		doc, err := documentFromPayload(p.Payload)
		if err != nil {
			decodeErr = err
			return
		}
		docs = append(docs, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("list by patient: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	sortNewestFirst(docs)
	return docs, nil
}

// Stats scrolls the whole collection reading only the fields it counts.
func (s *QdrantStorage) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	b := newStatsBuilder(since)
	err := s.scrollAll(ctx, nil, qdrant.NewWithPayloadInclude("report_type", "patient_ref", "created_at"),
		func(p *qdrant.RetrievedPoint) {
			b.add(
				report.ReportType(p.Payload["report_type"].GetStringValue()),
				p.Payload["patient_ref"].GetStringValue(),
				time.UnixMilli(p.Payload["created_at"].GetIntegerValue()).UTC(),
			)
		})
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return b.result(), nil
}

// scrollAll pages through every point matching filter. Qdrant scroll offsets
// are inclusive, so each page asks for one extra point to use as the next
// offset.
func (s *QdrantStorage) scrollAll(ctx context.Context, filter *qdrant.Filter, payload *qdrant.WithPayloadSelector, fn func(*qdrant.RetrievedPoint)) error {
	const pageSize = 100
	var offset *qdrant.PointId

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(pageSize + 1)),
			Offset:         offset,
			WithPayload:    payload,
		})
		if err != nil {
			return fmt.Errorf("failed to scroll documents: %w", err)
		}

		if len(results) <= pageSize {
			for _, r := range results {
				fn(r)
			}
			return nil
		}
		for _, r := range results[:pageSize] {
			fn(r)
		}
		offset = results[pageSize].Id
	}
}

func documentFromPayload(payload map[string]*qdrant.Value) (*Document, error) {
	str := func(key string) string { return payload[key].GetStringValue() }

	doc := &Document{
		ID:                str("document_id"),
		ReportType:        report.ReportType(str("report_type")),
		RawContent:        str("raw_content"),
		NormalizedContent: str("normalized_content"),
		DoctorSummary:     str("doctor_summary"),
		PatientSummary:    str("patient_summary"),
		EmbeddingSource:   str("embedding_source"),
		PatientRef:        str("patient_ref"),
		PatientID:         str("patient_id"),
		Source:            str("source"),
		CreatedAt:         time.UnixMilli(payload["created_at"].GetIntegerValue()).UTC(),
		Flags:             []string{},
	}
	if list := payload["flags"].GetListValue(); list != nil {
		for _, v := range list.Values {
			doc.Flags = append(doc.Flags, v.GetStringValue())
		}
	}

	findings, err := report.UnmarshalFindings(doc.ReportType, []byte(str("findings_json")))
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	doc.Findings = findings
	return doc, nil
}
