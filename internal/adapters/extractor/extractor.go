package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"clip-relay/internal/domain"
	"clip-relay/internal/infra/metrics"
)

// Service реализует domain.Extractor: диспетчеризация по платформе в одной
// точке, дальше общий контракт «проверить ссылку → извлечь id → забрать метаданные».
type Service struct {
	http    *http.Client
	igToken string
}

// New создаёт экстрактор.
func New(timeout time.Duration, igToken string) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		http:    &http.Client{Timeout: timeout},
		igToken: igToken,
	}
}

var _ domain.Extractor = (*Service)(nil)

// Extract возвращает нормализованные метаданные ролика.
func (s *Service) Extract(ctx context.Context, url string, platform domain.Platform) (domain.VideoMetadata, error) {
	start := time.Now()
	meta, err := s.extract(ctx, url, platform)
	metrics.ExtractionSeconds.WithLabelValues(string(platform)).Observe(time.Since(start).Seconds())
	return meta, err
}

func (s *Service) extract(ctx context.Context, url string, platform domain.Platform) (domain.VideoMetadata, error) {
	switch platform {
	case domain.PlatformYouTube:
		return s.extractYouTube(ctx, url)
	case domain.PlatformTikTok:
		return s.extractTikTok(ctx, url)
	case domain.PlatformInstagram:
		return s.extractInstagram(ctx, url)
	default:
		return domain.VideoMetadata{}, domain.NewTerminal(fmt.Errorf("%w: %q", domain.ErrUnsupportedPlatform, platform))
	}
}

// oEmbedResponse — общий ответ oEmbed-эндпоинтов платформ.
type oEmbedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// fetchOEmbed выполняет запрос метаданных и классифицирует сбои на
// временные и окончательные.
func (s *Service) fetchOEmbed(ctx context.Context, platform domain.Platform, endpoint string) (oEmbedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return oEmbedResponse{}, domain.NewTerminal(fmt.Errorf("создание запроса: %w", err))
	}
	start := time.Now()
	resp, err := s.http.Do(req)
	metrics.ObserveNetworkRequest("extractor", "oembed", string(platform), start, err)
	if err != nil {
		return oEmbedResponse{}, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := fmt.Errorf("oembed %s: статус %d: %s", platform, resp.StatusCode, strings.TrimSpace(string(data)))
		if transientStatus(resp.StatusCode) {
			return oEmbedResponse{}, domain.NewTransient(statusErr)
		}
		return oEmbedResponse{}, domain.NewTerminal(statusErr)
	}

	var parsed oEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return oEmbedResponse{}, domain.NewTerminal(fmt.Errorf("распаковка oembed: %w", err))
	}
	return parsed, nil
}

// transientStatus перечисляет коды, после которых стоит повторить попытку.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// classifyTransportErr помечает сетевые сбои временными: обрыв соединения,
// недоступность DNS, таймаут.
func classifyTransportErr(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewTransient(fmt.Errorf("таймаут запроса: %w", err))
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.NewTransient(fmt.Errorf("таймаут запроса: %w", err))
	case errors.As(err, new(*net.DNSError)):
		return domain.NewTransient(fmt.Errorf("сбой DNS: %w", err))
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED):
		return domain.NewTransient(fmt.Errorf("обрыв соединения: %w", err))
	case errors.Is(err, context.Canceled):
		return domain.NewTransient(err)
	default:
		return domain.NewTransient(fmt.Errorf("сетевой сбой: %w", err))
	}
}

func metadataFromOEmbed(resp oEmbedResponse) domain.VideoMetadata {
	return domain.VideoMetadata{
		Title:        strings.TrimSpace(resp.Title),
		Description:  strings.TrimSpace(resp.Title),
		ThumbnailURL: resp.ThumbnailURL,
		Author:       strings.TrimSpace(resp.AuthorName),
	}
}
