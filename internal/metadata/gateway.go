// Package metadata は外部メタデータプロバイダ連携機能を提供する。
// タイトル属性とクロスリファレンスIDの取得を行うゲートウェイクライアントを含む。
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/watchlog/internal/metrics"
	"github.com/hitoshi/watchlog/internal/model"
	"github.com/hitoshi/watchlog/internal/security"
)

const (
	// posterImageBaseURL はポスター画像の配信ベースURL。
	// プロバイダは相対パスのみを返すため、クライアント側で絶対URLに変換する。
	posterImageBaseURL = "https://image.tmdb.org/t/p/w500"
	// backdropImageBaseURL は背景画像の配信ベースURL。
	backdropImageBaseURL = "https://image.tmdb.org/t/p/w780"
)

// TitleAttributes は外部プロバイダから取得したタイトル属性。
// Description はサニタイズ済みの状態で返される。
type TitleAttributes struct {
	Name        string
	PosterURL   string
	BackdropURL string
	Description string
	Directors   []string
	ReleaseDate string
	Genres      []string
}

// Gateway は外部メタデータプロバイダへのアクセスを抽象化する。
// 取得失敗時は GATEWAY_UNAVAILABLE のAPIErrorを返し、
// 呼び出し元（取り込みコーディネータ）は部分的な書き込みを行わない。
type Gateway interface {
	// FetchTitleAttributes は外部IDとメディア種別からタイトル属性を取得する。
	FetchTitleAttributes(ctx context.Context, externalID int64, mediaType model.MediaType) (*TitleAttributes, error)
	// FetchSecondaryExternalID はクロスリファレンスID（IMDb ID）を取得する。
	// プロバイダに登録がない場合は空文字列を返す。
	FetchSecondaryExternalID(ctx context.Context, externalID int64, mediaType model.MediaType) (string, error)
}

// Client は外部メタデータAPIのクライアント。
// SSRF防止付きHTTPクライアントを通してプロバイダを呼び出す。
type Client struct {
	httpClient *http.Client
	sanitizer  security.DescriptionSanitizerService
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	baseURL    string
	apiKey     string
}

// compile-time interface check
var _ Gateway = (*Client)(nil)

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは運用側の設定値（末尾スラッシュなし）。
func NewClient(
	baseURL string,
	apiKey string,
	httpClient *http.Client,
	sanitizer security.DescriptionSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Client {
	return &Client{
		httpClient: httpClient,
		sanitizer:  sanitizer,
		collector:  collector,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// attributesResponse はタイトル詳細エンドポイントのレスポンス。
// 映画は title/release_date、シリーズは name/first_air_date を使用する。
type attributesResponse struct {
	Title        string `json:"title"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	CreatedBy []struct {
		Name string `json:"name"`
	} `json:"created_by"`
}

// externalIDsResponse はクロスリファレンスIDエンドポイントのレスポンス。
type externalIDsResponse struct {
	IMDBID string `json:"imdb_id"`
}

// FetchTitleAttributes は外部IDとメディア種別からタイトル属性を取得する。
// 概要文はサニタイズしてから返す。監督情報は映画はクルーのDirector、
// シリーズはクリエイターから抽出する。
func (c *Client) FetchTitleAttributes(ctx context.Context, externalID int64, mediaType model.MediaType) (*TitleAttributes, error) {
	segment, err := pathSegment(mediaType)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/%s/%d?append_to_response=credits", c.baseURL, segment, externalID)
	body, err := c.doGet(ctx, reqURL, externalID, mediaType)
	if err != nil {
		return nil, err
	}

	var resp attributesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("メタデータレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("external_id", externalID),
			slog.String("media_type", string(mediaType)),
		)
		return nil, model.NewGatewayUnavailableError("レスポンスJSONのパースに失敗しました")
	}

	attrs := &TitleAttributes{
		Name:        resp.Title,
		ReleaseDate: resp.ReleaseDate,
		Description: c.sanitizer.Sanitize(resp.Overview),
	}
	if mediaType == model.MediaTypeSeries {
		attrs.Name = resp.Name
		attrs.ReleaseDate = resp.FirstAirDate
	}
	if resp.PosterPath != "" {
		attrs.PosterURL = posterImageBaseURL + resp.PosterPath
	}
	if resp.BackdropPath != "" {
		attrs.BackdropURL = backdropImageBaseURL + resp.BackdropPath
	}
	for _, g := range resp.Genres {
		if g.Name != "" {
			attrs.Genres = append(attrs.Genres, g.Name)
		}
	}
	if mediaType == model.MediaTypeMovie {
		for _, crew := range resp.Credits.Crew {
			if crew.Job == "Director" {
				attrs.Directors = append(attrs.Directors, crew.Name)
			}
		}
	} else {
		for _, creator := range resp.CreatedBy {
			if creator.Name != "" {
				attrs.Directors = append(attrs.Directors, creator.Name)
			}
		}
	}

	return attrs, nil
}

// FetchSecondaryExternalID はクロスリファレンスID（IMDb ID）を取得する。
func (c *Client) FetchSecondaryExternalID(ctx context.Context, externalID int64, mediaType model.MediaType) (string, error) {
	segment, err := pathSegment(mediaType)
	if err != nil {
		return "", err
	}

	reqURL := fmt.Sprintf("%s/%s/%d/external_ids", c.baseURL, segment, externalID)
	body, err := c.doGet(ctx, reqURL, externalID, mediaType)
	if err != nil {
		return "", err
	}

	var resp externalIDsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("クロスリファレンスIDレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("external_id", externalID),
		)
		return "", model.NewGatewayUnavailableError("レスポンスJSONのパースに失敗しました")
	}

	return resp.IMDBID, nil
}

// doGet はゲートウェイへのGETリクエストを実行し、レスポンスボディを返す。
// レイテンシとHTTPステータスをメトリクスに記録する。
// 404は存在しない外部IDとしてTITLE_NOT_FOUND、それ以外の失敗は
// GATEWAY_UNAVAILABLEのAPIErrorにマップする。
func (c *Client) doGet(ctx context.Context, reqURL string, externalID int64, mediaType model.MediaType) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Watchlog/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.collector.RecordGatewayLatency(time.Since(start))
	if err != nil {
		c.logger.Error("メタデータゲートウェイの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("external_id", externalID),
			slog.String("media_type", string(mediaType)),
		)
		return nil, model.NewGatewayUnavailableError("外部プロバイダへの接続に失敗しました")
	}
	defer resp.Body.Close()

	c.collector.RecordGatewayStatus(resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return nil, model.NewTitleNotFoundError(fmt.Sprintf("%s/%d", mediaType, externalID))
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("メタデータゲートウェイがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int64("external_id", externalID),
			slog.String("media_type", string(mediaType)),
		)
		return nil, model.NewGatewayUnavailableError(fmt.Sprintf("外部プロバイダがステータス %d を返しました", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewGatewayUnavailableError("レスポンスボディの読み取りに失敗しました")
	}

	return body, nil
}

// pathSegment はメディア種別をプロバイダのパスセグメントに変換する。
func pathSegment(mediaType model.MediaType) (string, error) {
	switch mediaType {
	case model.MediaTypeMovie:
		return "movie", nil
	case model.MediaTypeSeries:
		return "tv", nil
	default:
		return "", model.NewInvalidMediaTypeError(string(mediaType))
	}
}
