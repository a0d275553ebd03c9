// Package qdrant stores the index in a Qdrant collection over gRPC. Point IDs
// are insertion positions and each point's payload carries its record, so the
// vector and metadata sides cannot drift apart.
package qdrant

import (
	"context"
	"fmt"
	"sync"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var _ vectorstore.Index = (*Storage)(nil)

// Config holds connection details for a Qdrant server.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Storage is a Qdrant-backed index.
type Storage struct {
	mu          sync.RWMutex
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	cfg         Config
	dimension   int
	count       int
	records     []domain.Record
}

// Open connects to Qdrant, creates the collection if missing and loads the
// existing records in position order.
func Open(ctx context.Context, cfg Config, dimension int) (*Storage, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrDimensionMismatch, dimension)
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	s := &Storage{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		cfg:         cfg,
		dimension:   dimension,
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := s.loadRecords(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) withAuth(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	if s.cfg.APIKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", s.cfg.APIKey)
	}
	return ctx, cancel
}

func (s *Storage) ensureCollection(ctx context.Context) error {
	ctx, cancel := s.withAuth(ctx)
	defer cancel()

	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.cfg.Collection})
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}
	if exists.GetResult().GetExists() {
		info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.cfg.Collection})
		if err != nil {
			return fmt.Errorf("qdrant collection info: %w", err)
		}
		size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && int(size) != s.dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, index expects %d",
				domain.ErrDimensionMismatch, s.cfg.Collection, size, s.dimension)
		}
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(s.dimension),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

func (s *Storage) loadRecords(ctx context.Context) error {
	ctx, cancel := s.withAuth(ctx)
	defer cancel()

	var (
		records []domain.Record
		offset  *pb.PointId
	)
	for {
		limit := uint32(256)
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return fmt.Errorf("qdrant scroll: %w", err)
		}
		for _, pt := range resp.GetResult() {
			pos := int(pt.GetId().GetNum())
			for len(records) <= pos {
				records = append(records, domain.Record{})
			}
			records[pos] = recordFromPayload(pt.GetPayload())
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	s.records = records
	s.count = len(records)
	return nil
}

// Close releases the gRPC connection.
func (s *Storage) Close() error { return s.conn.Close() }

func (s *Storage) Dimension() int { return s.dimension }

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Storage) Add(ctx context.Context, vectors [][]float32, records []domain.Record) error {
	if err := vectorstore.CheckAdd(s.dimension, vectors, records); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	points := make([]*pb.PointStruct, len(vectors))
	for i := range vectors {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(s.count + i)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}}},
			Payload: payloadFromRecord(records[i]),
		}
	}
	ctx, cancel := s.withAuth(ctx)
	defer cancel()
	wait := true
	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	s.count += len(vectors)
	s.records = append(s.records, records...)
	return nil
}

func (s *Storage) Search(ctx context.Context, query []float32, topK int) ([]domain.Record, error) {
	if err := vectorstore.CheckQuery(s.dimension, query); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 || s.count == 0 {
		return []domain.Record{}, nil
	}
	ctx, cancel := s.withAuth(ctx)
	defer cancel()
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.cfg.Collection,
		Vector:         query,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	results := make([]domain.Record, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		results = append(results, recordFromPayload(pt.GetPayload()))
	}
	return results, nil
}

func (s *Storage) Records() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vectorstore.CloneRecords(s.records)
}

// Save is a no-op: Qdrant persists upserts server-side.
func (s *Storage) Save(context.Context) error { return nil }

func payloadFromRecord(r domain.Record) map[string]*pb.Value {
	page := &pb.Value{Kind: &pb.Value_NullValue{}}
	if r.Page != nil {
		page = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(*r.Page)}}
	}
	return map[string]*pb.Value{
		"text":        {Kind: &pb.Value_StringValue{StringValue: r.Text}},
		"document_id": {Kind: &pb.Value_StringValue{StringValue: r.DocumentID}},
		"page":        page,
	}
}

func recordFromPayload(p map[string]*pb.Value) domain.Record {
	r := domain.Record{
		Text:       p["text"].GetStringValue(),
		DocumentID: p["document_id"].GetStringValue(),
	}
	if v, ok := p["page"]; ok {
		if iv, ok := v.GetKind().(*pb.Value_IntegerValue); ok {
			r.Page = domain.IntPtr(int(iv.IntegerValue))
		}
	}
	return r
}
