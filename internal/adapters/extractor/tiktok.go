package extractor

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"clip-relay/internal/domain"
)

var tiktokVideoPath = regexp.MustCompile(`^/@[\w.\-]+/video/(\d+)$`)

// tiktokVideoID проверяет ссылку и извлекает идентификатор видео.
// Короткие ссылки vm.tiktok.com принимаются как есть: их раскрывает oEmbed.
func tiktokVideoID(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	switch host {
	case "tiktok.com":
		matches := tiktokVideoPath.FindStringSubmatch(strings.TrimSuffix(parsed.Path, "/"))
		if matches == nil {
			return "", fmt.Errorf("%w: не удалось извлечь id видео из %q", domain.ErrInvalidURL, raw)
		}
		return matches[1], nil
	case "vm.tiktok.com", "vt.tiktok.com":
		id := strings.Trim(parsed.Path, "/")
		if id == "" {
			return "", fmt.Errorf("%w: пустая короткая ссылка %q", domain.ErrInvalidURL, raw)
		}
		return id, nil
	default:
		return "", fmt.Errorf("%w: %q не является ссылкой TikTok", domain.ErrInvalidURL, raw)
	}
}

func (s *Service) extractTikTok(ctx context.Context, raw string) (domain.VideoMetadata, error) {
	if _, err := tiktokVideoID(raw); err != nil {
		return domain.VideoMetadata{}, domain.NewTerminal(err)
	}
	endpoint := "https://www.tiktok.com/oembed?url=" + url.QueryEscape(raw)
	resp, err := s.fetchOEmbed(ctx, domain.PlatformTikTok, endpoint)
	if err != nil {
		return domain.VideoMetadata{}, err
	}
	return metadataFromOEmbed(resp), nil
}
