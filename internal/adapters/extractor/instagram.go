package extractor

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"clip-relay/internal/domain"
)

var instagramShortcode = regexp.MustCompile(`^[A-Za-z0-9_-]{5,}$`)

// instagramMediaCode проверяет ссылку и извлекает шорткод публикации.
// Поддерживаются /p/<code>, /reel/<code> и /reels/<code>.
func instagramMediaCode(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if host != "instagram.com" {
		return "", fmt.Errorf("%w: %q не является ссылкой Instagram", domain.ErrInvalidURL, raw)
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: не удалось извлечь шорткод из %q", domain.ErrInvalidURL, raw)
	}
	kind, code := parts[0], parts[1]
	switch kind {
	case "p", "reel", "reels", "tv":
	default:
		return "", fmt.Errorf("%w: неизвестный тип публикации %q", domain.ErrInvalidURL, kind)
	}
	if !instagramShortcode.MatchString(code) {
		return "", fmt.Errorf("%w: некорректный шорткод %q", domain.ErrInvalidURL, code)
	}
	return code, nil
}

// Instagram отдаёт oEmbed только через Graph API с токеном приложения.
func (s *Service) extractInstagram(ctx context.Context, raw string) (domain.VideoMetadata, error) {
	if _, err := instagramMediaCode(raw); err != nil {
		return domain.VideoMetadata{}, domain.NewTerminal(err)
	}
	if s.igToken == "" {
		return domain.VideoMetadata{}, domain.NewTerminal(fmt.Errorf("instagram: не задан oEmbed-токен"))
	}
	endpoint := "https://graph.facebook.com/v19.0/instagram_oembed?url=" + url.QueryEscape(raw) +
		"&access_token=" + url.QueryEscape(s.igToken)
	resp, err := s.fetchOEmbed(ctx, domain.PlatformInstagram, endpoint)
	if err != nil {
		return domain.VideoMetadata{}, err
	}
	return metadataFromOEmbed(resp), nil
}
