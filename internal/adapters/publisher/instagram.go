package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clip-relay/internal/domain"
	"clip-relay/internal/infra/metrics"
)

const defaultGraphURL = "https://graph.facebook.com/v19.0"

// Instagram публикует контент через Graph API: сначала создаётся контейнер
// медиа, затем он публикуется. Лента обязательна, сторис — по возможности.
type Instagram struct {
	http        *http.Client
	baseURL     string
	accessToken string
	accountID   string
}

// NewInstagram создаёт паблишера.
func NewInstagram(accessToken, accountID, baseURL string, timeout time.Duration) *Instagram {
	if baseURL == "" {
		baseURL = defaultGraphURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Instagram{
		http:        &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		accessToken: accessToken,
		accountID:   accountID,
	}
}

var _ domain.Publisher = (*Instagram)(nil)

// PublishFeed публикует пост в ленту.
func (p *Instagram) PublishFeed(ctx context.Context, post domain.FeedPost) (domain.PublishResult, error) {
	creationID, err := p.createContainer(ctx, post, "REELS")
	if err != nil {
		return domain.PublishResult{}, fmt.Errorf("контейнер ленты: %w", err)
	}
	mediaID, err := p.publishContainer(ctx, creationID)
	if err != nil {
		return domain.PublishResult{}, fmt.Errorf("публикация ленты: %w", err)
	}
	permalink, err := p.fetchPermalink(ctx, mediaID)
	if err != nil {
		// Постоянная ссылка — косметика, публикация уже состоялась.
		permalink = ""
	}
	return domain.PublishResult{MediaID: mediaID, Permalink: permalink}, nil
}

// PublishStory публикует сторис.
func (p *Instagram) PublishStory(ctx context.Context, post domain.FeedPost) (domain.PublishResult, error) {
	creationID, err := p.createContainer(ctx, post, "STORIES")
	if err != nil {
		return domain.PublishResult{}, fmt.Errorf("контейнер сторис: %w", err)
	}
	mediaID, err := p.publishContainer(ctx, creationID)
	if err != nil {
		return domain.PublishResult{}, fmt.Errorf("публикация сторис: %w", err)
	}
	return domain.PublishResult{MediaID: mediaID}, nil
}

func (p *Instagram) createContainer(ctx context.Context, post domain.FeedPost, mediaType string) (string, error) {
	params := url.Values{}
	params.Set("media_type", mediaType)
	params.Set("video_url", post.VideoURL)
	if mediaType != "STORIES" {
		params.Set("caption", post.Caption)
	}
	if post.ThumbnailURL != "" {
		params.Set("thumb_offset", "0")
	}
	var resp struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/%s/media", p.baseURL, p.accountID)
	if err := p.post(ctx, "create_container", endpoint, params, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", domain.NewTerminal(fmt.Errorf("graph api: пустой id контейнера"))
	}
	return resp.ID, nil
}

func (p *Instagram) publishContainer(ctx context.Context, creationID string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", creationID)
	var resp struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/%s/media_publish", p.baseURL, p.accountID)
	if err := p.post(ctx, "media_publish", endpoint, params, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", domain.NewTerminal(fmt.Errorf("graph api: пустой id медиа"))
	}
	return resp.ID, nil
}

func (p *Instagram) fetchPermalink(ctx context.Context, mediaID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", p.baseURL, mediaID, url.QueryEscape(p.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	start := time.Now()
	resp, err := p.http.Do(req)
	metrics.ObserveNetworkRequest("publisher", "permalink", "instagram", start, err)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("graph api: статус %d", resp.StatusCode)
	}
	var parsed struct {
		Permalink string `json:"permalink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Permalink, nil
}

func (p *Instagram) post(ctx context.Context, operation, endpoint string, params url.Values, out any) error {
	params.Set("access_token", p.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return domain.NewTerminal(fmt.Errorf("создание запроса: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := p.http.Do(req)
	metrics.ObserveNetworkRequest("publisher", operation, "instagram", start, err)
	if err != nil {
		return domain.NewTransient(fmt.Errorf("graph api: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return domain.NewTransient(fmt.Errorf("чтение ответа: %w", err))
	}
	if resp.StatusCode >= 300 {
		apiErr := fmt.Errorf("graph api: статус %d: %s", resp.StatusCode, graphErrorMessage(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return domain.NewTransient(apiErr)
		}
		return domain.NewTerminal(apiErr)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewTerminal(fmt.Errorf("распаковка ответа: %w", err))
	}
	return nil
}

func graphErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}
