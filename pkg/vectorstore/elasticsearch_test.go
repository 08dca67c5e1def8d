package vectorstore

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-go/internal/config"
)

// fakeES 记录请求，并为 go-elasticsearch 补上产品校验所需的响应头。
type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeES(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeES, Store) {
	t.Helper()
	f := &fakeES{bodies: map[string]string{}, handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		f.requests = append(f.requests, key)
		f.bodies[key] = string(body)
		f.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := NewElasticsearch(config.ElasticsearchConfig{
		Addresses:   srv.URL,
		IndexPrefix: "docqa_",
	}, config.RetryConfig{TimeoutSeconds: 5, MaxRetries: 1, InitialIntervalMS: 1})
	require.NoError(t, err)
	return f, store
}

func TestES_RecreateCreatesLowercaseIndexWithDims(t *testing.T) {
	t.Parallel()

	f, store := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"index_not_found_exception","status":404}`))
			return
		}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	})

	require.NoError(t, store.Recreate(context.Background(), "MyReport", 1024))

	assert.Equal(t, []string{"DELETE /docqa_myreport", "PUT /docqa_myreport"}, f.requests)
	var mapping struct {
		Mappings struct {
			Properties struct {
				Vector struct {
					Dims       int    `json:"dims"`
					Similarity string `json:"similarity"`
				} `json:"vector"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.bodies["PUT /docqa_myreport"]), &mapping))
	assert.Equal(t, 1024, mapping.Mappings.Properties.Vector.Dims)
	assert.Equal(t, "cosine", mapping.Mappings.Properties.Vector.Similarity)
}

func TestES_UpsertWritesBulkNDJSON(t *testing.T) {
	t.Parallel()

	f, store := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"took":1,"errors":false,"items":[]}`))
	})

	err := store.Upsert(context.Background(), "report", []Point{
		{ID: 0, Vector: []float32{1, 0}, Text: "zero"},
		{ID: 1, Vector: []float32{0, 1}, Text: "one"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"POST /_bulk"}, f.requests)

	var lines []string
	sc := bufio.NewScanner(strings.NewReader(f.bodies["POST /_bulk"]))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_index":"docqa_report","_id":"1"}}`, lines[2])
	assert.JSONEq(t, `{"chunk_id":1,"text":"one","vector":[0,1]}`, lines[3])
}

func TestES_UpsertReportsItemErrors(t *testing.T) {
	t.Parallel()

	_, store := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"took":1,"errors":true,"items":[]}`))
	})

	err := store.Upsert(context.Background(), "report", []Point{{ID: 0, Vector: []float32{1}, Text: "x"}})
	assert.ErrorContains(t, err, "部分文档失败")
}

func TestES_SearchMissingIndex(t *testing.T) {
	t.Parallel()

	f, store := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := store.Search(context.Background(), "report", []float32{1}, 5)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.Equal(t, []string{"HEAD /docqa_report"}, f.requests)
}

func TestES_SearchParsesKNNHits(t *testing.T) {
	t.Parallel()

	f, store := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"4","_score":0.88,"_source":{"chunk_id":4,"text":"gamma"}},
			{"_id":"2","_score":0.41,"_source":{"chunk_id":2,"text":"delta"}}
		]}}`))
	})

	hits, err := store.Search(context.Background(), "report", []float32{0.3, 0.7}, 3)
	require.NoError(t, err)
	assert.Equal(t, []Hit{{ID: 4, Score: 0.88, Text: "gamma"}, {ID: 2, Score: 0.41, Text: "delta"}}, hits)

	var q struct {
		KNN struct {
			Field         string    `json:"field"`
			QueryVector   []float32 `json:"query_vector"`
			K             int       `json:"k"`
			NumCandidates int       `json:"num_candidates"`
		} `json:"knn"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.bodies["POST /docqa_report/_search"]), &q))
	assert.Equal(t, "vector", q.KNN.Field)
	assert.Equal(t, 3, q.KNN.K)
	assert.Equal(t, 100, q.KNN.NumCandidates)
	assert.Equal(t, []float32{0.3, 0.7}, q.KNN.QueryVector)
}
