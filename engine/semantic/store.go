// Package semantic owns the Qdrant collection holding video chunk records.
package semantic

import (
	"context"
	"fmt"
	"log/slog"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/WessleyAI/vidrag/engine/record"
	"github.com/WessleyAI/vidrag/pkg/fn"
)

// DefaultBatchSize is the number of points sent per upsert call.
const DefaultBatchSize = 1000

// PointsClient is the subset of the Qdrant points service used here.
type PointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// CollectionsClient is the subset of the Qdrant collections service used here.
type CollectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      PointsClient
	collections CollectionsClient
	collection  string
	logger      *slog.Logger
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	vs := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	vs.conn = conn
	return vs, nil
}

// NewWithClients builds a VectorStore over existing service clients.
func NewWithClients(points PointsClient, collections CollectionsClient, collection string) *VectorStore {
	return &VectorStore{
		points:      points,
		collections: collections,
		collection:  collection,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger used for per-batch failures.
func (v *VectorStore) WithLogger(l *slog.Logger) *VectorStore {
	if l != nil {
		v.logger = l
	}
	return v
}

// Collection returns the collection name.
func (v *VectorStore) Collection() string { return v.collection }

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection drops the collection and every point in it. A missing
// collection is not an error.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: v.collection,
	})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores records in a single call.
func (v *VectorStore) Upsert(ctx context.Context, records []record.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = toPoint(r)
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// UpsertBatched stores records in batches of size. A failed batch is logged
// and counted; the remaining batches are still sent.
func (v *VectorStore) UpsertBatched(ctx context.Context, records []record.Record, size int) BatchReport {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var rep BatchReport
	for i, batch := range fn.Chunk(records, size) {
		if ctx.Err() != nil {
			rep.Errors = append(rep.Errors, ctx.Err())
			break
		}
		rep.Batches++
		if err := v.Upsert(ctx, batch); err != nil {
			rep.Failed++
			rep.Errors = append(rep.Errors, err)
			v.logger.Error("upsert batch failed", "batch", i, "size", len(batch), "error", err)
			continue
		}
		rep.Upserted += len(batch)
		v.logger.Info("upsert batch", "batch", i, "size", len(batch))
	}
	return rep
}

// DeleteByFilename removes all points of one video. Used for re-ingestion.
func (v *VectorStore) DeleteByFilename(ctx context.Context, filename string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch(record.NSFilename, []string{filename}),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete by filename %s: %w", filename, err)
	}
	return nil
}

// Search performs k-NN similarity search.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	return v.SearchFiltered(ctx, embedding, topK, nil)
}

// SearchFiltered performs similarity search. Every filter must match; within
// a filter any allowed value matches.
func (v *VectorStore) SearchFiltered(ctx context.Context, embedding []float32, topK int, filters []Filter) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	if len(filters) > 0 {
		must := make([]*pb.Condition, 0, len(filters))
		for _, f := range filters {
			if len(f.Allow) == 0 {
				continue
			}
			must = append(must, fieldMatch(f.Namespace, f.Allow))
		}
		if len(must) > 0 {
			req.Filter = &pb.Filter{Must: must}
		}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{
			ID:        r.GetId().GetUuid(),
			Score:     r.GetScore(),
			Restricts: make(map[string][]string),
		}
		for k, val := range r.GetPayload() {
			if k == ContentKey {
				sr.Content = val.GetStringValue()
				continue
			}
			sr.Restricts[k] = stringsOf(val)
		}
		results[i] = sr
	}
	return results, nil
}

func toPoint(r record.Record) *pb.PointStruct {
	payload := make(map[string]*pb.Value, len(r.Restricts)+1)
	for _, rs := range r.Restricts {
		vals := make([]*pb.Value, len(rs.Allow))
		for i, a := range rs.Allow {
			vals[i] = stringValue(a)
		}
		payload[rs.Namespace] = &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: vals}}}
	}
	payload[ContentKey] = stringValue(r.Value(record.NSChunkText))

	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: r.Embedding},
			},
		},
		Payload: payload,
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func stringsOf(v *pb.Value) []string {
	if list := v.GetListValue(); list != nil {
		out := make([]string, 0, len(list.GetValues()))
		for _, item := range list.GetValues() {
			out = append(out, item.GetStringValue())
		}
		return out
	}
	return []string{v.GetStringValue()}
}

func fieldMatch(key string, values []string) *pb.Condition {
	match := &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: values[0]}}
	if len(values) > 1 {
		match = &pb.Match{MatchValue: &pb.Match_Keywords{Keywords: &pb.RepeatedStrings{Strings: values}}}
	}
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: match,
			},
		},
	}
}
