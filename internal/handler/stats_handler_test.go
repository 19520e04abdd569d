package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/watchlog/internal/model"
)

// --- モック定義 ---

// mockStatsService はStatsServiceInterfaceのモック実装。
type mockStatsService struct {
	quickStatsFn    func(ctx context.Context, userID string) (*model.QuickStats, error)
	discoveryFeedFn func(ctx context.Context, limit int) ([]model.DiscoveryProfile, error)
}

func (m *mockStatsService) QuickStats(ctx context.Context, userID string) (*model.QuickStats, error) {
	if m.quickStatsFn != nil {
		return m.quickStatsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockStatsService) DiscoveryFeed(ctx context.Context, limit int) ([]model.DiscoveryProfile, error) {
	if m.discoveryFeedFn != nil {
		return m.discoveryFeedFn(ctx, limit)
	}
	return nil, nil
}

// --- GET /api/users/me/stats テスト ---

func TestStatsHandler_QuickStats_Success(t *testing.T) {
	svc := &mockStatsService{
		quickStatsFn: func(ctx context.Context, userID string) (*model.QuickStats, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return &model.QuickStats{
				Watching:   2,
				Finished:   5,
				Planned:    3,
				Favourites: 4,
			}, nil
		},
	}

	h := NewStatsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me/stats", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.QuickStats(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]int
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	want := map[string]int{"watching": 2, "finished": 5, "planned": 3, "favourites": 4}
	for key, wantVal := range want {
		if result[key] != wantVal {
			t.Errorf("%s = %d, want %d", key, result[key], wantVal)
		}
	}
}

func TestStatsHandler_QuickStats_NoUserID_Returns401(t *testing.T) {
	h := NewStatsHandler(&mockStatsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/me/stats", nil)
	w := httptest.NewRecorder()

	h.QuickStats(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- GET /api/discover テスト ---

func TestStatsHandler_DiscoveryFeed_Success(t *testing.T) {
	joined := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	svc := &mockStatsService{
		discoveryFeedFn: func(ctx context.Context, limit int) ([]model.DiscoveryProfile, error) {
			if limit != 3 {
				t.Errorf("limit = %d, want 3", limit)
			}
			return []model.DiscoveryProfile{
				{
					UserProfile:    model.UserProfile{Username: "alice", DisplayName: "Alice"},
					JoinedAt:       joined,
					Genres:         []string{"SF", "ドラマ"},
					FollowerCount:  8,
					FollowingCount: 2,
					Followers: []model.UserProfile{
						{Username: "bob", DisplayName: "Bob"},
					},
					Following: []model.UserProfile{},
				},
			}, nil
		},
	}

	h := NewStatsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/discover?limit=3", nil)
	w := httptest.NewRecorder()

	h.DiscoveryFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("result length = %d, want 1", len(result))
	}

	profile := result[0]
	if profile["username"] != "alice" {
		t.Errorf("username = %v, want %q", profile["username"], "alice")
	}
	if int(profile["follower_count"].(float64)) != 8 {
		t.Errorf("follower_count = %v, want 8", profile["follower_count"])
	}

	genres := profile["genres"].([]interface{})
	if len(genres) != 2 || genres[0] != "SF" {
		t.Errorf("genres = %v, want [SF ドラマ]", genres)
	}

	followers := profile["followers"].([]interface{})
	if len(followers) != 1 {
		t.Fatalf("followers length = %d, want 1", len(followers))
	}
	if followers[0].(map[string]interface{})["username"] != "bob" {
		t.Errorf("follower username = %v, want %q", followers[0], "bob")
	}
}

func TestStatsHandler_DiscoveryFeed_DefaultLimit(t *testing.T) {
	var capturedLimit int
	svc := &mockStatsService{
		discoveryFeedFn: func(ctx context.Context, limit int) ([]model.DiscoveryProfile, error) {
			capturedLimit = limit
			return nil, nil
		},
	}

	h := NewStatsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/discover", nil)
	w := httptest.NewRecorder()

	h.DiscoveryFeed(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedLimit != defaultDiscoveryLimit {
		t.Errorf("limit = %d, want %d", capturedLimit, defaultDiscoveryLimit)
	}
}

func TestStatsHandler_DiscoveryFeed_NonNumericLimit_Returns400(t *testing.T) {
	called := false
	svc := &mockStatsService{
		discoveryFeedFn: func(ctx context.Context, limit int) ([]model.DiscoveryProfile, error) {
			called = true
			return nil, nil
		},
	}

	h := NewStatsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/discover?limit=abc", nil)
	w := httptest.NewRecorder()

	h.DiscoveryFeed(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if called {
		t.Error("service should not be called for non-numeric limit")
	}

	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeInvalidLimit {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeInvalidLimit)
	}
}

func TestStatsHandler_DiscoveryFeed_ZeroLimit_Returns400(t *testing.T) {
	svc := &mockStatsService{
		discoveryFeedFn: func(ctx context.Context, limit int) ([]model.DiscoveryProfile, error) {
			return nil, model.NewInvalidLimitError(limit)
		},
	}

	h := NewStatsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/discover?limit=0", nil)
	w := httptest.NewRecorder()

	h.DiscoveryFeed(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestStatsHandler_DiscoveryFeed_NilGenres_EncodesEmptyArray(t *testing.T) {
	svc := &mockStatsService{
		discoveryFeedFn: func(ctx context.Context, limit int) ([]model.DiscoveryProfile, error) {
			return []model.DiscoveryProfile{
				{
					UserProfile: model.UserProfile{Username: "newcomer"},
					// 視聴履歴のない新規ユーザーはGenresがnil
				},
			}, nil
		},
	}

	h := NewStatsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/discover?limit=1", nil)
	w := httptest.NewRecorder()

	h.DiscoveryFeed(w, req)

	var result []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	genres, ok := result[0]["genres"].([]interface{})
	if !ok {
		t.Fatalf("genres should be an array, got %v", result[0]["genres"])
	}
	if len(genres) != 0 {
		t.Errorf("genres = %v, want empty array", genres)
	}
}
