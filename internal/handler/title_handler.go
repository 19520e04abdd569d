package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/watchlog/internal/model"
)

// TitleServiceInterface はタイトルハンドラーが必要とするサービスインターフェース。
type TitleServiceInterface interface {
	// GetTitle はカタログのタイトル詳細を取得する。
	GetTitle(ctx context.Context, titleID string) (*model.Title, error)
}

// TitleHandler はカタログタイトルのHTTPハンドラー。
type TitleHandler struct {
	service TitleServiceInterface
}

// NewTitleHandler はTitleHandlerを生成する。
func NewTitleHandler(service TitleServiceInterface) *TitleHandler {
	return &TitleHandler{
		service: service,
	}
}

// titleResponse はタイトル情報のAPIレスポンス。
type titleResponse struct {
	ID                  string    `json:"id"`
	ExternalID          int64     `json:"external_id"`
	SecondaryExternalID string    `json:"secondary_external_id,omitempty"`
	MediaType           string    `json:"media_type"`
	Name                string    `json:"name"`
	PosterURL           string    `json:"poster_url,omitempty"`
	BackdropURL         string    `json:"backdrop_url,omitempty"`
	Description         string    `json:"description,omitempty"`
	Directors           []string  `json:"directors"`
	ReleaseDate         string    `json:"release_date,omitempty"`
	Genres              []string  `json:"genres"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// GetTitle はタイトル詳細を取得する。
// GET /api/titles/:id
func (h *TitleHandler) GetTitle(w http.ResponseWriter, r *http.Request) {
	titleID := chi.URLParam(r, "id")

	title, err := h.service.GetTitle(r.Context(), titleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTitleResponse(title))
}

// toTitleResponse はmodel.TitleからAPIレスポンスに変換する。
func toTitleResponse(title *model.Title) titleResponse {
	return titleResponse{
		ID:                  title.ID,
		ExternalID:          title.ExternalID,
		SecondaryExternalID: title.SecondaryExternalID,
		MediaType:           string(title.MediaType),
		Name:                title.Name,
		PosterURL:           title.PosterURL,
		BackdropURL:         title.BackdropURL,
		Description:         title.Description,
		Directors:           title.Directors,
		ReleaseDate:         title.ReleaseDate,
		Genres:              title.GenreList(),
		CreatedAt:           title.CreatedAt,
		UpdatedAt:           title.UpdatedAt,
	}
}
