package vectorstore

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docqa-go/internal/config"
)

type fakeQdrant struct {
	collections map[string]*qdrant.CreateCollection
	upserts     []*qdrant.UpsertPoints
	queries     []*qdrant.QueryPoints
	queryResult []*qdrant.ScoredPoint
	queryErrs   []error
	deleted     []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: map[string]*qdrant.CreateCollection{}}
}

func (f *fakeQdrant) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeQdrant) DeleteCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.collections[req.CollectionName] = req
	return nil
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upserts = append(f.upserts, req)
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.queries = append(f.queries, req)
	if len(f.queryErrs) > 0 {
		err := f.queryErrs[0]
		f.queryErrs = f.queryErrs[1:]
		return nil, err
	}
	return f.queryResult, nil
}

func (f *fakeQdrant) Close() error { return nil }

func testRetry() config.RetryConfig {
	return config.RetryConfig{TimeoutSeconds: 5, MaxRetries: 1, InitialIntervalMS: 1}
}

func TestParseQdrantURL(t *testing.T) {
	t.Parallel()

	host, port, tls, err := parseQdrantURL("https://xyz.cloud.qdrant.io:6334")
	require.NoError(t, err)
	assert.Equal(t, "xyz.cloud.qdrant.io", host)
	assert.Equal(t, 6334, port)
	assert.True(t, tls)

	host, port, tls, err = parseQdrantURL("http://localhost")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, defaultQdrantPort, port)
	assert.False(t, tls)

	_, _, _, err = parseQdrantURL("::not a url")
	assert.Error(t, err)
}

func TestQdrant_RecreateDropsExistingCollection(t *testing.T) {
	t.Parallel()

	fake := newFakeQdrant()
	fake.collections["report"] = &qdrant.CreateCollection{CollectionName: "report"}
	s := newQdrantStore(fake, testRetry())

	require.NoError(t, s.Recreate(context.Background(), "report", 1024))

	assert.Equal(t, []string{"report"}, fake.deleted)
	created := fake.collections["report"]
	require.NotNil(t, created)
	params := created.GetVectorsConfig().GetParams()
	assert.EqualValues(t, 1024, params.GetSize())
	assert.Equal(t, qdrant.Distance_Cosine, params.GetDistance())
}

func TestQdrant_UpsertBuildsPointsWithTextPayload(t *testing.T) {
	t.Parallel()

	fake := newFakeQdrant()
	s := newQdrantStore(fake, testRetry())

	err := s.Upsert(context.Background(), "report", []Point{
		{ID: 0, Vector: []float32{1, 0}, Text: "first"},
		{ID: 1, Vector: []float32{0, 1}, Text: "second"},
	})
	require.NoError(t, err)
	require.Len(t, fake.upserts, 1)

	req := fake.upserts[0]
	assert.Equal(t, "report", req.CollectionName)
	assert.True(t, req.GetWait())
	require.Len(t, req.Points, 2)
	assert.EqualValues(t, 1, req.Points[1].GetId().GetNum())
	assert.Equal(t, "second", req.Points[1].GetPayload()["text"].GetStringValue())
}

func TestQdrant_UpsertEmptyIsNoop(t *testing.T) {
	t.Parallel()

	fake := newFakeQdrant()
	require.NoError(t, newQdrantStore(fake, testRetry()).Upsert(context.Background(), "report", nil))
	assert.Empty(t, fake.upserts)
}

func TestQdrant_SearchMissingCollection(t *testing.T) {
	t.Parallel()

	fake := newFakeQdrant()
	_, err := newQdrantStore(fake, testRetry()).Search(context.Background(), "nope", []float32{1}, 5)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.Empty(t, fake.queries)
}

func TestQdrant_SearchMapsHitsAndRetriesUnavailable(t *testing.T) {
	t.Parallel()

	fake := newFakeQdrant()
	fake.collections["report"] = &qdrant.CreateCollection{CollectionName: "report"}
	fake.queryErrs = []error{status.Error(codes.Unavailable, "connection reset")}
	fake.queryResult = []*qdrant.ScoredPoint{
		{Id: qdrant.NewIDNum(3), Score: 0.91, Payload: qdrant.NewValueMap(map[string]any{"text": "alpha"})},
		{Id: qdrant.NewIDNum(7), Score: 0.52, Payload: qdrant.NewValueMap(map[string]any{"text": "beta"})},
	}
	s := newQdrantStore(fake, testRetry())

	hits, err := s.Search(context.Background(), "report", []float32{0.1, 0.2}, 2)
	require.NoError(t, err)
	assert.Len(t, fake.queries, 2)
	assert.EqualValues(t, 2, fake.queries[1].GetLimit())
	assert.Equal(t, []Hit{{ID: 3, Score: 0.91, Text: "alpha"}, {ID: 7, Score: 0.52, Text: "beta"}}, hits)
}

func TestQdrant_SearchDoesNotRetryInvalidArgument(t *testing.T) {
	t.Parallel()

	fake := newFakeQdrant()
	fake.collections["report"] = &qdrant.CreateCollection{CollectionName: "report"}
	fake.queryErrs = []error{status.Error(codes.InvalidArgument, "wrong dim")}

	_, err := newQdrantStore(fake, testRetry()).Search(context.Background(), "report", []float32{1}, 5)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Len(t, fake.queries, 1)
}
