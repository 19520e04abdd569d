package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/watchlog/internal/middleware"
	"github.com/hitoshi/watchlog/internal/model"
)

// CatalogServiceInterface はウォッチリスト追加に必要なサービスインターフェース。
type CatalogServiceInterface interface {
	// AddToWatchlist は外部IDで指定された作品をウォッチリストに追加する。
	// 戻り値のboolは視聴状態が新規作成されたかを示す。
	AddToWatchlist(ctx context.Context, userID string, externalID int64, mediaType model.MediaType, initialStatus model.WatchStatus) (*model.WatchStateEntry, *model.Title, bool, error)
}

// WatchStateServiceInterface は視聴状態操作に必要なサービスインターフェース。
type WatchStateServiceInterface interface {
	// ListWatchlist はユーザーのウォッチリストをタイトル情報付きで返す。
	ListWatchlist(ctx context.Context, userID string, status *model.WatchStatus) ([]model.EntryWithTitle, error)
	// UpdateStatus は視聴状態のステータスを変更する。
	UpdateStatus(ctx context.Context, userID, entryID string, status model.WatchStatus) (*model.WatchStateEntry, error)
	// UpdateProgress は進捗フィールドを部分更新する。
	UpdateProgress(ctx context.Context, userID, entryID string, progress model.ProgressUpdate) (*model.WatchStateEntry, error)
	// ToggleFavourite はお気に入りフラグを反転する。
	ToggleFavourite(ctx context.Context, userID, entryID string) (*model.WatchStateEntry, error)
	// Remove は視聴状態を削除する。
	Remove(ctx context.Context, userID, entryID string) error
}

// WatchlistHandler はウォッチリスト管理のHTTPハンドラー。
type WatchlistHandler struct {
	catalog CatalogServiceInterface
	state   WatchStateServiceInterface
}

// NewWatchlistHandler はWatchlistHandlerを生成する。
func NewWatchlistHandler(catalog CatalogServiceInterface, state WatchStateServiceInterface) *WatchlistHandler {
	return &WatchlistHandler{
		catalog: catalog,
		state:   state,
	}
}

// addToWatchlistRequest はウォッチリスト追加リクエストのボディ。
type addToWatchlistRequest struct {
	ExternalID int64  `json:"external_id"`
	MediaType  string `json:"media_type"`
	Status     string `json:"status,omitempty"`
}

// updateStatusRequest はステータス変更リクエストのボディ。
type updateStatusRequest struct {
	Status string `json:"status"`
}

// updateProgressRequest は進捗更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateProgressRequest struct {
	Episode        *int `json:"episode,omitempty"`
	Season         *int `json:"season,omitempty"`
	RuntimeMinutes *int `json:"runtime_minutes,omitempty"`
}

// entryResponse は視聴状態のAPIレスポンス。
type entryResponse struct {
	ID                    string    `json:"id"`
	TitleID               string    `json:"title_id"`
	Status                string    `json:"status"`
	CurrentEpisode        *int      `json:"current_episode,omitempty"`
	CurrentSeason         *int      `json:"current_season,omitempty"`
	CurrentRuntimeMinutes *int      `json:"current_runtime_minutes,omitempty"`
	IsFavourite           bool      `json:"is_favourite"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// watchlistItemResponse は視聴状態とタイトル情報を結合したAPIレスポンス。
type watchlistItemResponse struct {
	entryResponse
	TitleName   string   `json:"title_name"`
	MediaType   string   `json:"media_type"`
	PosterURL   string   `json:"poster_url,omitempty"`
	Genres      []string `json:"genres"`
	ReleaseDate string   `json:"release_date,omitempty"`
}

// addToWatchlistResponse はウォッチリスト追加のAPIレスポンス。
type addToWatchlistResponse struct {
	Entry entryResponse `json:"entry"`
	Title titleResponse `json:"title"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// AddToWatchlist はウォッチリスト追加を処理する。
// 新規作成時は201、既存の視聴状態が返る場合は200を返す。
// POST /api/watchlist
func (h *WatchlistHandler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req addToWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.ExternalID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "外部IDが指定されていません。",
			Category: "validation",
			Action:   "external_idに正の整数を指定してください。",
		})
		return
	}

	entry, title, created, err := h.catalog.AddToWatchlist(
		r.Context(), userID, req.ExternalID,
		model.MediaType(req.MediaType), model.WatchStatus(req.Status),
	)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	statusCode := http.StatusOK
	if created {
		statusCode = http.StatusCreated
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(addToWatchlistResponse{
		Entry: toEntryResponse(entry),
		Title: toTitleResponse(title),
	})
}

// ListWatchlist はユーザーのウォッチリストを取得する。
// statusクエリパラメータで視聴状態による絞り込みができる。
// GET /api/watchlist?status=watching
func (h *WatchlistHandler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var statusFilter *model.WatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.WatchStatus(raw)
		statusFilter = &s
	}

	items, err := h.state.ListWatchlist(r.Context(), userID, statusFilter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]watchlistItemResponse, len(items))
	for i, item := range items {
		results[i] = toWatchlistItemResponse(item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// UpdateStatus は視聴状態のステータスを変更する。
// PATCH /api/watchlist/:id/status
func (h *WatchlistHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entryID := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	entry, err := h.state.UpdateStatus(r.Context(), userID, entryID, model.WatchStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponse(entry))
}

// UpdateProgress は進捗フィールドを部分更新する。
// PATCH /api/watchlist/:id/progress
func (h *WatchlistHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entryID := chi.URLParam(r, "id")

	var req updateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	entry, err := h.state.UpdateProgress(r.Context(), userID, entryID, model.ProgressUpdate{
		Episode:        req.Episode,
		Season:         req.Season,
		RuntimeMinutes: req.RuntimeMinutes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponse(entry))
}

// ToggleFavourite はお気に入りフラグを反転する。
// POST /api/watchlist/:id/favourite
func (h *WatchlistHandler) ToggleFavourite(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entryID := chi.URLParam(r, "id")

	entry, err := h.state.ToggleFavourite(r.Context(), userID, entryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponse(entry))
}

// Remove は視聴状態を削除する。
// DELETE /api/watchlist/:id
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entryID := chi.URLParam(r, "id")

	if err := h.state.Remove(r.Context(), userID, entryID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toEntryResponse はmodel.WatchStateEntryからAPIレスポンスに変換する。
func toEntryResponse(entry *model.WatchStateEntry) entryResponse {
	return entryResponse{
		ID:                    entry.ID,
		TitleID:               entry.TitleID,
		Status:                string(entry.Status),
		CurrentEpisode:        entry.CurrentEpisode,
		CurrentSeason:         entry.CurrentSeason,
		CurrentRuntimeMinutes: entry.CurrentRuntimeMinutes,
		IsFavourite:           entry.IsFavourite,
		CreatedAt:             entry.CreatedAt,
		UpdatedAt:             entry.UpdatedAt,
	}
}

// toWatchlistItemResponse はmodel.EntryWithTitleからAPIレスポンスに変換する。
func toWatchlistItemResponse(item model.EntryWithTitle) watchlistItemResponse {
	title := model.Title{Genres: item.Genres}
	return watchlistItemResponse{
		entryResponse: toEntryResponse(&item.WatchStateEntry),
		TitleName:     item.TitleName,
		MediaType:     string(item.MediaType),
		PosterURL:     item.PosterURL,
		Genres:        title.GenreList(),
		ReleaseDate:   item.ReleaseDate,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeTitleNotFound, model.ErrCodeEntryNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeSelfFollow:
		return http.StatusConflict
	case model.ErrCodeInvalidMediaType, model.ErrCodeInvalidStatus,
		model.ErrCodeInvalidProgress, model.ErrCodeInvalidLimit:
		return http.StatusBadRequest
	case model.ErrCodeGatewayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
