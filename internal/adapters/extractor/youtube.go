package extractor

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"clip-relay/internal/domain"
)

var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)

// youtubeVideoID проверяет ссылку и извлекает идентификатор ролика.
// Поддерживаются youtube.com/watch?v=, youtu.be/<id> и youtube.com/shorts/<id>.
func youtubeVideoID(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	var id string
	switch host {
	case "youtube.com", "m.youtube.com":
		if strings.HasPrefix(parsed.Path, "/shorts/") {
			id = strings.Trim(strings.TrimPrefix(parsed.Path, "/shorts/"), "/")
		} else if parsed.Path == "/watch" {
			id = parsed.Query().Get("v")
		}
	case "youtu.be":
		id = strings.Trim(parsed.Path, "/")
	default:
		return "", fmt.Errorf("%w: %q не является ссылкой YouTube", domain.ErrInvalidURL, raw)
	}
	if !youtubeIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: не удалось извлечь id ролика из %q", domain.ErrInvalidURL, raw)
	}
	return id, nil
}

func (s *Service) extractYouTube(ctx context.Context, raw string) (domain.VideoMetadata, error) {
	videoID, err := youtubeVideoID(raw)
	if err != nil {
		return domain.VideoMetadata{}, domain.NewTerminal(err)
	}
	watchURL := "https://www.youtube.com/watch?v=" + videoID
	endpoint := "https://www.youtube.com/oembed?format=json&url=" + url.QueryEscape(watchURL)
	resp, err := s.fetchOEmbed(ctx, domain.PlatformYouTube, endpoint)
	if err != nil {
		return domain.VideoMetadata{}, err
	}
	return metadataFromOEmbed(resp), nil
}
