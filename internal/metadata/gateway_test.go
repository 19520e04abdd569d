package metadata

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/watchlog/internal/model"
)

// passthroughSanitizer はテスト用のサニタイザ。入力をそのまま返す。
type passthroughSanitizer struct{}

func (s *passthroughSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(raw)
}

// mockCollector はテスト用のメトリクスコレクター。記録された値を保持する。
type mockCollector struct {
	gatewayStatuses []int
	latencyCount    int
}

func (m *mockCollector) RecordIngestSuccess(mediaType string) {}
func (m *mockCollector) RecordIngestFailure(reason string)    {}
func (m *mockCollector) RecordTitleCreated(mediaType string)  {}
func (m *mockCollector) RecordConflictRecovered()             {}
func (m *mockCollector) RecordGatewayStatus(statusCode int) {
	m.gatewayStatuses = append(m.gatewayStatuses, statusCode)
}
func (m *mockCollector) RecordGatewayLatency(duration time.Duration) {
	m.latencyCount++
}
func (m *mockCollector) RecordRefreshSuccess() {}
func (m *mockCollector) RecordRefreshFailure() {}

func newTestClient(t *testing.T, ts *httptest.Server, collector *mockCollector) *Client {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewClient(ts.URL, "test-api-key", ts.Client(), &passthroughSanitizer{}, collector, logger)
}

// TestFetchTitleAttributes_Movie は映画の属性取得をテストする。
func TestFetchTitleAttributes_Movie(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/550" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("append_to_response"); got != "credits" {
			t.Errorf("append_to_response = %q, want %q", got, "credits")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-api-key" {
			t.Errorf("Authorization = %q, want Bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"title": "Fight Club",
			"overview": "不眠症に悩む会社員の物語。",
			"poster_path": "/poster.jpg",
			"backdrop_path": "/backdrop.jpg",
			"release_date": "1999-10-15",
			"genres": [{"name": "ドラマ"}, {"name": "スリラー"}],
			"credits": {"crew": [
				{"name": "David Fincher", "job": "Director"},
				{"name": "Jim Uhls", "job": "Screenplay"}
			]}
		}`))
	}))
	defer ts.Close()

	collector := &mockCollector{}
	client := newTestClient(t, ts, collector)

	attrs, err := client.FetchTitleAttributes(context.Background(), 550, model.MediaTypeMovie)
	if err != nil {
		t.Fatalf("FetchTitleAttributes() returned error: %v", err)
	}

	if attrs.Name != "Fight Club" {
		t.Errorf("Name = %q, want %q", attrs.Name, "Fight Club")
	}
	if attrs.ReleaseDate != "1999-10-15" {
		t.Errorf("ReleaseDate = %q, want %q", attrs.ReleaseDate, "1999-10-15")
	}
	if attrs.PosterURL != posterImageBaseURL+"/poster.jpg" {
		t.Errorf("PosterURL = %q, want prefixed path", attrs.PosterURL)
	}
	if attrs.BackdropURL != backdropImageBaseURL+"/backdrop.jpg" {
		t.Errorf("BackdropURL = %q, want prefixed path", attrs.BackdropURL)
	}
	if len(attrs.Genres) != 2 || attrs.Genres[0] != "ドラマ" || attrs.Genres[1] != "スリラー" {
		t.Errorf("Genres = %v, want [ドラマ スリラー]", attrs.Genres)
	}
	if len(attrs.Directors) != 1 || attrs.Directors[0] != "David Fincher" {
		t.Errorf("Directors = %v, want [David Fincher]", attrs.Directors)
	}
	if attrs.Description != "不眠症に悩む会社員の物語。" {
		t.Errorf("Description = %q, unexpected", attrs.Description)
	}

	if collector.latencyCount != 1 {
		t.Errorf("latency records = %d, want 1", collector.latencyCount)
	}
	if len(collector.gatewayStatuses) != 1 || collector.gatewayStatuses[0] != 200 {
		t.Errorf("gateway statuses = %v, want [200]", collector.gatewayStatuses)
	}
}

// TestFetchTitleAttributes_Series はシリーズの属性取得をテストする。
// シリーズは name/first_air_date/created_by を使用する。
func TestFetchTitleAttributes_Series(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1399" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "Game of Thrones",
			"overview": "七王国の玉座を巡る物語。",
			"first_air_date": "2011-04-17",
			"genres": [{"name": "ファンタジー"}],
			"created_by": [{"name": "David Benioff"}, {"name": "D. B. Weiss"}]
		}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts, &mockCollector{})

	attrs, err := client.FetchTitleAttributes(context.Background(), 1399, model.MediaTypeSeries)
	if err != nil {
		t.Fatalf("FetchTitleAttributes() returned error: %v", err)
	}

	if attrs.Name != "Game of Thrones" {
		t.Errorf("Name = %q, want %q", attrs.Name, "Game of Thrones")
	}
	if attrs.ReleaseDate != "2011-04-17" {
		t.Errorf("ReleaseDate = %q, want %q", attrs.ReleaseDate, "2011-04-17")
	}
	if len(attrs.Directors) != 2 {
		t.Errorf("Directors = %v, want 2 creators", attrs.Directors)
	}
	if attrs.PosterURL != "" {
		t.Errorf("PosterURL = %q, want empty for missing poster_path", attrs.PosterURL)
	}
}

// TestFetchTitleAttributes_SanitizesDescription は概要文がサニタイズされることをテストする。
func TestFetchTitleAttributes_SanitizesDescription(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title": "Test", "overview": "  概要  "}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts, &mockCollector{})

	attrs, err := client.FetchTitleAttributes(context.Background(), 1, model.MediaTypeMovie)
	if err != nil {
		t.Fatalf("FetchTitleAttributes() returned error: %v", err)
	}
	if attrs.Description != "概要" {
		t.Errorf("Description = %q, want sanitized output", attrs.Description)
	}
}

// TestFetchTitleAttributes_NotFound は404がTITLE_NOT_FOUNDにマップされることをテストする。
func TestFetchTitleAttributes_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := newTestClient(t, ts, &mockCollector{})

	_, err := client.FetchTitleAttributes(context.Background(), 99999999, model.MediaTypeMovie)
	if err == nil {
		t.Fatal("expected error for 404 response, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeTitleNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeTitleNotFound)
	}
}

// TestFetchTitleAttributes_ServerError は5xxがGATEWAY_UNAVAILABLEにマップされることをテストする。
func TestFetchTitleAttributes_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	collector := &mockCollector{}
	client := newTestClient(t, ts, collector)

	_, err := client.FetchTitleAttributes(context.Background(), 550, model.MediaTypeMovie)
	if err == nil {
		t.Fatal("expected error for 503 response, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeGatewayUnavailable {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeGatewayUnavailable)
	}
	if len(collector.gatewayStatuses) != 1 || collector.gatewayStatuses[0] != 503 {
		t.Errorf("gateway statuses = %v, want [503]", collector.gatewayStatuses)
	}
}

// TestFetchTitleAttributes_Timeout はタイムアウトがGATEWAY_UNAVAILABLEにマップされることをテストする。
func TestFetchTitleAttributes_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	httpClient := ts.Client()
	httpClient.Timeout = 50 * time.Millisecond
	client := NewClient(ts.URL, "", httpClient, &passthroughSanitizer{}, &mockCollector{}, logger)

	_, err := client.FetchTitleAttributes(context.Background(), 550, model.MediaTypeMovie)
	if err == nil {
		t.Fatal("expected error for timeout, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeGatewayUnavailable {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeGatewayUnavailable)
	}
}

// TestFetchTitleAttributes_InvalidJSON は不正JSONがGATEWAY_UNAVAILABLEにマップされることをテストする。
func TestFetchTitleAttributes_InvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not-json`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts, &mockCollector{})

	_, err := client.FetchTitleAttributes(context.Background(), 550, model.MediaTypeMovie)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeGatewayUnavailable {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeGatewayUnavailable)
	}
}

// TestFetchTitleAttributes_InvalidMediaType は無効なメディア種別の拒否をテストする。
func TestFetchTitleAttributes_InvalidMediaType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for invalid media type")
	}))
	defer ts.Close()

	client := newTestClient(t, ts, &mockCollector{})

	_, err := client.FetchTitleAttributes(context.Background(), 550, model.MediaType("book"))
	if err == nil {
		t.Fatal("expected error for invalid media type, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeInvalidMediaType {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidMediaType)
	}
}

// TestFetchSecondaryExternalID はクロスリファレンスIDの取得をテストする。
func TestFetchSecondaryExternalID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/550/external_ids" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"imdb_id": "tt0137523"}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts, &mockCollector{})

	id, err := client.FetchSecondaryExternalID(context.Background(), 550, model.MediaTypeMovie)
	if err != nil {
		t.Fatalf("FetchSecondaryExternalID() returned error: %v", err)
	}
	if id != "tt0137523" {
		t.Errorf("secondary id = %q, want %q", id, "tt0137523")
	}
}

// TestFetchSecondaryExternalID_Missing は未登録の場合に空文字列が返ることをテストする。
func TestFetchSecondaryExternalID_Missing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"imdb_id": null}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts, &mockCollector{})

	id, err := client.FetchSecondaryExternalID(context.Background(), 550, model.MediaTypeMovie)
	if err != nil {
		t.Fatalf("FetchSecondaryExternalID() returned error: %v", err)
	}
	if id != "" {
		t.Errorf("secondary id = %q, want empty", id)
	}
}

// TestFetchSecondaryExternalID_SeriesPath はシリーズのパスセグメントをテストする。
func TestFetchSecondaryExternalID_SeriesPath(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1399/external_ids" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"imdb_id": "tt0944947"}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts, &mockCollector{})

	id, err := client.FetchSecondaryExternalID(context.Background(), 1399, model.MediaTypeSeries)
	if err != nil {
		t.Fatalf("FetchSecondaryExternalID() returned error: %v", err)
	}
	if id != "tt0944947" {
		t.Errorf("secondary id = %q, want %q", id, "tt0944947")
	}
}

// TestClientImplementsGateway はClientがGatewayインターフェースを実装することをテストする。
func TestClientImplementsGateway(t *testing.T) {
	var _ Gateway = (*Client)(nil)
}
