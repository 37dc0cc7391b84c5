package analyzer

import (
	"fmt"
	"strings"

	"clip-relay/internal/domain"
)

// platformHashtags — базовые теги по платформе для детерминированного фолбэка.
var platformHashtags = map[domain.Platform][]string{
	domain.PlatformInstagram: {"#reels", "#instagram", "#video"},
	domain.PlatformYouTube:   {"#youtube", "#shorts", "#video"},
	domain.PlatformTikTok:    {"#tiktok", "#fyp", "#video"},
}

// BasicContent строит обогащение напрямую из метаданных: заголовок и описание
// без изменений, платформенные хэштеги, ссылка на автора. Детерминированный
// фолбэк на случай отказа LLM — конвейер никогда не блокируется на анализаторе.
func BasicContent(item domain.QueueItem, meta domain.VideoMetadata) domain.Analysis {
	description := strings.TrimSpace(meta.Description)
	if description == "" {
		description = strings.TrimSpace(meta.Title)
	}
	return domain.Analysis{
		Description: clipRunes(description, maxDescriptionRunes),
		Hashtags:    NormalizeHashtags(platformHashtags[item.Platform]),
		Citation:    basicCitation(item, meta),
	}
}

func basicCitation(item domain.QueueItem, meta domain.VideoMetadata) string {
	author := strings.TrimSpace(meta.Author)
	if author == "" {
		return fmt.Sprintf("Источник: %s", item.URL)
	}
	return fmt.Sprintf("Автор: %s (%s)", author, item.Platform)
}
