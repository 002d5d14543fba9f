package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength — максимальная длина slug.
const MaxSlugLength = 120

// Slugify строит URL-slug из заголовка: нижний регистр, без диакритики,
// только [a-z0-9_] и дефисы, пробелы → "-", повторные дефисы схлопываются,
// дефисы по краям убираются. Пустой результат — ошибка валидации.
func Slugify(title string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, title)
	if err != nil {
		return "", validationf("некорректный текст для slug: %v", err)
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
		// Остальные символы удаляются без разделителя
	}

	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	if slug == "" {
		return "", validationf("не удалось построить slug из %q", title)
	}
	return slug, nil
}
