package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/watchlog/internal/middleware"
	"github.com/hitoshi/watchlog/internal/model"
)

// defaultDiscoveryLimit はlimitクエリパラメータ省略時の取得件数。
const defaultDiscoveryLimit = 20

// StatsServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	// QuickStats はユーザーの視聴状態の集計を返す。
	QuickStats(ctx context.Context, userID string) (*model.QuickStats, error)
	// DiscoveryFeed はユーザー発見フィードを登録日時の昇順で返す。
	DiscoveryFeed(ctx context.Context, limit int) ([]model.DiscoveryProfile, error)
}

// StatsHandler は集計・ディスカバリーのHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{
		service: service,
	}
}

// quickStatsResponse は視聴状態集計のAPIレスポンス。
type quickStatsResponse struct {
	Watching   int `json:"watching"`
	Finished   int `json:"finished"`
	Planned    int `json:"planned"`
	Favourites int `json:"favourites"`
}

// discoveryProfileResponse はディスカバリーフィード1件のAPIレスポンス。
type discoveryProfileResponse struct {
	profileResponse
	JoinedAt       time.Time         `json:"joined_at"`
	Genres         []string          `json:"genres"`
	FollowerCount  int               `json:"follower_count"`
	FollowingCount int               `json:"following_count"`
	Followers      []profileResponse `json:"followers"`
	Following      []profileResponse `json:"following"`
}

// QuickStats は認証済みユーザーの視聴状態集計を取得する。
// GET /api/users/me/stats
func (h *StatsHandler) QuickStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	stats, err := h.service.QuickStats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quickStatsResponse{
		Watching:   stats.Watching,
		Finished:   stats.Finished,
		Planned:    stats.Planned,
		Favourites: stats.Favourites,
	})
}

// DiscoveryFeed はユーザー発見フィードを取得する。
// GET /api/discover?limit=N
func (h *StatsHandler) DiscoveryFeed(w http.ResponseWriter, r *http.Request) {
	limit := defaultDiscoveryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     model.ErrCodeInvalidLimit,
				Message:  "取得件数の解析に失敗しました: " + raw,
				Category: "validation",
				Action:   "取得件数には1以上の整数を指定してください。",
			})
			return
		}
		limit = parsed
	}

	profiles, err := h.service.DiscoveryFeed(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]discoveryProfileResponse, len(profiles))
	for i, p := range profiles {
		results[i] = toDiscoveryProfileResponse(p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// toDiscoveryProfileResponse はmodel.DiscoveryProfileからAPIレスポンスに変換する。
func toDiscoveryProfileResponse(p model.DiscoveryProfile) discoveryProfileResponse {
	genres := p.Genres
	if genres == nil {
		genres = []string{}
	}
	return discoveryProfileResponse{
		profileResponse: profileResponse{
			Username:    p.Username,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
		},
		JoinedAt:       p.JoinedAt,
		Genres:         genres,
		FollowerCount:  p.FollowerCount,
		FollowingCount: p.FollowingCount,
		Followers:      toProfileResponses(p.Followers),
		Following:      toProfileResponses(p.Following),
	}
}
