package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kareline/raggate/internal/domain"
	answeruc "github.com/kareline/raggate/internal/usecase/answer"
	"github.com/kareline/raggate/internal/usecase/breaker"
	healthuc "github.com/kareline/raggate/internal/usecase/health"
	raguc "github.com/kareline/raggate/internal/usecase/rag"
	"github.com/kareline/raggate/internal/usecase/retry"
)

// --- Fakes for the pipeline dependencies ---

type stubKeys struct{}

func (stubKeys) Key(context.Context, domain.Query) (string, error) { return "", nil }
func (stubKeys) BumpVersion(context.Context) error                 { return nil }

type stubCache struct{}

func (stubCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (stubCache) Set(context.Context, string, []byte, time.Duration) {}

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{0.1}}, s.err
}

type stubSearcher struct {
	hits []domain.Hit
	err  error
}

func (s stubSearcher) SearchKNN(context.Context, []float32, int) ([]domain.Hit, error) {
	return s.hits, s.err
}

type stubUpserter struct{ err error }

func (s stubUpserter) Upsert(context.Context, domain.Document, []string, [][]float32) error {
	return s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func newTestServer(search stubSearcher, upsert stubUpserter) *Server {
	pipeline := raguc.New(
		stubKeys{}, stubCache{}, stubEmbedder{}, search, upsert, nil,
		breaker.New(),
		raguc.Options{CacheTTL: time.Minute, EmptyTTL: time.Second, TripWindow: time.Second, Retry: retry.Policy{MaxAttempts: 1}, ChunkWords: 10},
		zap.NewNop(),
	)
	answers := answeruc.New(nil, zap.NewNop())
	health := healthuc.New(stubPinger{}, nil, nil)
	return NewServer(pipeline, answers, health, zap.NewNop())
}

func doJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// --- Tests ---

func TestRag_ReturnsHits(t *testing.T) {
	s := newTestServer(stubSearcher{hits: []domain.Hit{{Rank: 1, ID: "1:0", Score: 0.9, Text: "alpha", DocID: 1}}}, stubUpserter{})

	rec := doJSON(t, s.Rag, `{"q":"what is raft","k":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Hits []domain.Hit `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].Text != "alpha" {
		t.Errorf("hits = %+v", resp.Hits)
	}
}

func TestRag_EmptyHitsMarshalsAsArray(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{})

	rec := doJSON(t, s.Rag, `{"q":"nothing here"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"hits":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestRag_Validation(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{})

	cases := []struct {
		name string
		body string
	}{
		{"empty q", `{"q":"","k":5}`},
		{"q too long", `{"q":"` + strings.Repeat("x", maxQueryLen+1) + `","k":5}`},
		{"k negative", `{"q":"ok","k":-1}`},
		{"k too big", `{"q":"ok","k":201}`},
		{"malformed json", `{"q":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, s.Rag, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}
}

func TestRag_SearchFailureMapsTo500(t *testing.T) {
	s := newTestServer(stubSearcher{err: errors.New("backend down")}, stubUpserter{})

	rec := doJSON(t, s.Rag, `{"q":"query","k":3}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"search_failed"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRag_OpenCircuitMapsTo503(t *testing.T) {
	s := newTestServer(stubSearcher{err: errors.New("down")}, stubUpserter{})

	// First request trips the breaker, second short-circuits.
	doJSON(t, s.Rag, `{"q":"query","k":3}`)
	rec := doJSON(t, s.Rag, `{"q":"query","k":3}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"circuit_open"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAnswer_ExtractiveWithoutGenerator(t *testing.T) {
	s := newTestServer(stubSearcher{hits: []domain.Hit{
		{Rank: 1, Text: "first passage"},
		{Rank: 2, Text: "second passage"},
	}}, stubUpserter{})

	rec := doJSON(t, s.Answer, `{"q":"question"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Answer    string       `json:"answer"`
		Citations []domain.Hit `json:"citations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "first passage second passage" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Citations) != 2 {
		t.Errorf("citations = %+v", resp.Citations)
	}
}

func TestAnswer_KCapTighterThanRag(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{})

	rec := doJSON(t, s.Answer, `{"q":"ok","k":21}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngest_ReportsChunkCount(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{})

	rec := doJSON(t, s.Ingest, `{"id":7,"text":"some short document","title":"T"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OK     bool  `json:"ok"`
		DocID  int64 `json:"doc_id"`
		Chunks int   `json:"chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.DocID != 7 || resp.Chunks != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestIngest_EmptyTextRejected(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{})

	rec := doJSON(t, s.Ingest, `{"id":7,"text":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngest_UpsertFailureMapsTo500(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{err: errors.New("write refused")})

	rec := doJSON(t, s.Ingest, `{"id":7,"text":"doc"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"ingest_failed"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestIngestBatch(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{})

	rec := doJSON(t, s.IngestBatch, `{"items":[{"id":1,"text":"a"},{"id":2,"text":"b"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Items []struct {
			OK     bool  `json:"ok"`
			DocID  int64 `json:"doc_id"`
			Chunks int   `json:"chunks"`
		} `json:"items"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Succeeded != 2 || resp.Failed != 0 || len(resp.Items) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if !resp.Items[0].OK || resp.Items[0].DocID != 1 || resp.Items[0].Chunks != 1 {
		t.Errorf("first item = %+v", resp.Items[0])
	}
}

func TestIngestBatch_PartialFailure(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{err: errors.New("write refused")})

	rec := doJSON(t, s.IngestBatch, `{"items":[{"id":1,"text":"a"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"failed":1`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"error":"ingest_failed"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestIngestBatch_EmptyRejected(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{})

	rec := doJSON(t, s.IngestBatch, `{"items":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(stubSearcher{}, stubUpserter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	health := healthuc.New(stubPinger{err: errors.New("refused")}, nil, nil)
	s := NewServer(nil, nil, health, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.HealthCheck(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
