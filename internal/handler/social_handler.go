package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/watchlog/internal/middleware"
	"github.com/hitoshi/watchlog/internal/model"
)

// SocialServiceInterface はフォローハンドラーが必要とするサービスインターフェース。
type SocialServiceInterface interface {
	// Follow はフォロー関係を作成する。既存の場合は何もしない。
	Follow(ctx context.Context, followerID, followedID string) error
	// Unfollow はフォロー関係を削除する。存在しない場合は何もしない。
	Unfollow(ctx context.Context, followerID, followedID string) error
	// ListFollowers はユーザーのフォロワー一覧を返す。
	ListFollowers(ctx context.Context, userID string) ([]model.UserProfile, error)
	// ListFollowing はユーザーのフォロー中一覧を返す。
	ListFollowing(ctx context.Context, userID string) ([]model.UserProfile, error)
}

// SocialHandler はフォローグラフ管理のHTTPハンドラー。
type SocialHandler struct {
	service SocialServiceInterface
}

// NewSocialHandler はSocialHandlerを生成する。
func NewSocialHandler(service SocialServiceInterface) *SocialHandler {
	return &SocialHandler{
		service: service,
	}
}

// profileResponse は公開プロフィールのAPIレスポンス。
type profileResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Follow は対象ユーザーをフォローする。冪等で、既にフォロー済みでも成功する。
// POST /api/users/:id/follow
func (h *SocialHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	targetID := chi.URLParam(r, "id")

	if err := h.service.Follow(r.Context(), userID, targetID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unfollow は対象ユーザーのフォローを解除する。冪等で、未フォローでも成功する。
// DELETE /api/users/:id/follow
func (h *SocialHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	targetID := chi.URLParam(r, "id")

	if err := h.service.Unfollow(r.Context(), userID, targetID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListFollowers は対象ユーザーのフォロワー一覧を取得する。
// GET /api/users/:id/followers
func (h *SocialHandler) ListFollowers(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	profiles, err := h.service.ListFollowers(r.Context(), targetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponses(profiles))
}

// ListFollowing は対象ユーザーのフォロー中一覧を取得する。
// GET /api/users/:id/following
func (h *SocialHandler) ListFollowing(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	profiles, err := h.service.ListFollowing(r.Context(), targetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponses(profiles))
}

// toProfileResponses はmodel.UserProfileのスライスをAPIレスポンスに変換する。
func toProfileResponses(profiles []model.UserProfile) []profileResponse {
	results := make([]profileResponse, len(profiles))
	for i, p := range profiles {
		results[i] = profileResponse{
			Username:    p.Username,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
		}
	}
	return results
}
