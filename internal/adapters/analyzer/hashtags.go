package analyzer

import (
	"strings"

	"clip-relay/internal/domain"
)

// NormalizeHashtags приводит теги к виду #слово и отбрасывает всё,
// что после нормализации не проходит доменный шаблон. Порядок сохраняется,
// дубликаты убираются.
func NormalizeHashtags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		normalized := normalizeHashtag(tag)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func normalizeHashtag(tag string) string {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "#") {
		trimmed = "#" + trimmed
	}
	if !domain.HashtagPattern.MatchString(trimmed) {
		return ""
	}
	return trimmed
}
