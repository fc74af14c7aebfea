package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/WessleyAI/vidrag/engine/record"
)

// --- Mocks ---

type mockPoints struct {
	upserts    []*pb.UpsertPoints
	upsertErrs []error
	deleted    *pb.DeletePoints
	deleteErr  error
	searched   *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserts = append(m.upserts, in)
	if n := len(m.upserts) - 1; n < len(m.upsertErrs) && m.upsertErrs[n] != nil {
		return nil, m.upsertErrs[n]
	}
	return &pb.PointsOperationResponse{}, nil
}
func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleted = in
	return &pb.PointsOperationResponse{}, m.deleteErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searched = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp  *pb.ListCollectionsResponse
	listErr   error
	created   *pb.CreateCollection
	createErr error
	deleteErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{Result: true}, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return &pb.CollectionOperationResponse{Result: true}, m.deleteErr
}

func rec(id, text string) record.Record {
	return record.Record{
		ID:        id,
		Embedding: []float32{1, 0},
		Restricts: []record.Restriction{
			{Namespace: record.NSChunkText, Allow: []string{text}},
			{Namespace: record.NSSeries, Allow: []string{"S1", "S2"}},
		},
	}
}

// --- Tests ---

func TestNewWithClients_CloseWithoutConn(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "test")
	if vs.Collection() != "test" {
		t.Fatalf("collection = %q", vs.Collection())
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "test"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.created != nil {
		t.Fatal("should not create an existing collection")
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{listResp: &pb.ListCollectionsResponse{}}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cols.created.GetVectorsConfig().GetParams().GetSize(); got != 768 {
		t.Fatalf("size = %d, want 768", got)
	}
}

func TestEnsureCollection_Errors(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{listErr: errors.New("rpc fail")}, "test")
	if err := vs.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected list error")
	}
	vs = NewWithClients(&mockPoints{}, &mockCollections{
		listResp:  &pb.ListCollectionsResponse{},
		createErr: errors.New("create fail"),
	}, "test")
	if err := vs.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected create error")
	}
}

func TestDeleteCollection_Error(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{deleteErr: errors.New("fail")}, "test")
	if err := vs.DeleteCollection(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteCollection_MissingIsNotError(t *testing.T) {
	cols := &mockCollections{deleteErr: status.Error(codes.NotFound, "collection test not found")}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.DeleteCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsert_Empty(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts.upserts) != 0 {
		t.Fatal("empty upsert should not call qdrant")
	}
}

func TestUpsert_Payload(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.Upsert(context.Background(), []record.Record{rec("id1", "remove the bolt")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := pts.upserts[0].GetPoints()[0]
	if p.GetId().GetUuid() != "id1" {
		t.Fatalf("id = %q", p.GetId().GetUuid())
	}
	if got := p.GetPayload()[ContentKey].GetStringValue(); got != "remove the bolt" {
		t.Fatalf("content = %q", got)
	}
	series := p.GetPayload()[record.NSSeries].GetListValue().GetValues()
	if len(series) != 2 || series[1].GetStringValue() != "S2" {
		t.Fatalf("series payload = %v", series)
	}
}

func TestUpsertBatched_ContinuesAfterFailure(t *testing.T) {
	pts := &mockPoints{upsertErrs: []error{nil, errors.New("boom"), nil}}
	vs := NewWithClients(pts, &mockCollections{}, "test")

	records := make([]record.Record, 5)
	for i := range records {
		records[i] = rec(string(rune('a'+i)), "t")
	}
	rep := vs.UpsertBatched(context.Background(), records, 2)
	if rep.Batches != 3 || rep.Failed != 1 || rep.Upserted != 3 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.Errors) != 1 {
		t.Fatalf("errors = %v", rep.Errors)
	}
	if n := len(pts.upserts[2].GetPoints()); n != 1 {
		t.Fatalf("last batch size = %d, want 1", n)
	}
}

func TestUpsertBatched_DefaultSize(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	records := make([]record.Record, DefaultBatchSize+1)
	for i := range records {
		records[i] = rec("x", "t")
	}
	rep := vs.UpsertBatched(context.Background(), records, 0)
	if rep.Batches != 2 || rep.Upserted != DefaultBatchSize+1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestUpsertBatched_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	rep := vs.UpsertBatched(ctx, []record.Record{rec("a", "t")}, 1)
	if rep.Batches != 0 || len(pts.upserts) != 0 {
		t.Fatalf("cancelled run sent batches: %+v", rep)
	}
}

func TestDeleteByFilename(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.DeleteByFilename(context.Background(), "v.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cond := pts.deleted.GetPoints().GetFilter().GetMust()[0].GetField()
	if cond.GetKey() != record.NSFilename || cond.GetMatch().GetKeyword() != "v.mp4" {
		t.Fatalf("condition = %v", cond)
	}

	pts.deleteErr = errors.New("fail")
	if err := vs.DeleteByFilename(context.Background(), "v.mp4"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchFiltered(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{{
				Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
				Score: 0.9,
				Payload: map[string]*pb.Value{
					ContentKey:            stringValue("open the hood"),
					record.NSSectionTitle: {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: []*pb.Value{stringValue("Intro")}}}},
					"legacy":              stringValue("flat"),
				},
			}},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	results, err := vs.SearchFiltered(context.Background(), []float32{1, 0}, 3, []Filter{
		{Namespace: record.NSEmission, Allow: []string{"BS6"}},
		{Namespace: record.NSSeries, Allow: []string{"S1", "S2"}},
		{Namespace: record.NSFuelType},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	must := pts.searched.GetFilter().GetMust()
	if len(must) != 2 {
		t.Fatalf("conditions = %d, want 2", len(must))
	}
	if got := must[1].GetField().GetMatch().GetKeywords().GetStrings(); len(got) != 2 {
		t.Fatalf("any-of match = %v", got)
	}
	if pts.searched.GetLimit() != 3 {
		t.Fatalf("limit = %d", pts.searched.GetLimit())
	}

	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	r := results[0]
	if r.ID != "p1" || r.Content != "open the hood" || r.Value(record.NSSectionTitle) != "Intro" || r.Value("legacy") != "flat" {
		t.Fatalf("result = %+v", r)
	}
}

func TestSearch_NoFilter(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if _, err := vs.Search(context.Background(), []float32{1}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.searched.GetFilter() != nil {
		t.Fatal("unexpected filter")
	}

	pts.searchErr = errors.New("fail")
	if _, err := vs.Search(context.Background(), []float32{1}, 1); err == nil {
		t.Fatal("expected error")
	}
}
