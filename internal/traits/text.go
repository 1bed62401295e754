package traits

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	sentenceBoundary = regexp.MustCompile(`\.\s+|\?\s+|!\s+`)
	abbreviations    = []string{"Dr.", "Mr.", "Mrs.", "Ms.", "Prof.", "Jr.", "Sr.", "vs.", "etc.", "e.g.", "i.e."}
)

// SplitSentences divide el texto en oraciones sin cortar en abreviaturas comunes.
// Cada oracion termina en '.', '?' o '!'.
func SplitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	tmp := text
	placeholders := make([]string, len(abbreviations))
	for i, abbr := range abbreviations {
		placeholders[i] = "\x00ABBR" + strconv.Itoa(i) + "\x00"
		tmp = strings.ReplaceAll(tmp, abbr, placeholders[i])
	}

	parts := sentenceBoundary.Split(tmp, -1)
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		for i, ph := range placeholders {
			s = strings.ReplaceAll(s, ph, abbreviations[i])
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.ContainsAny(s[len(s)-1:], ".!?") {
			s += "."
		}
		out = append(out, s)
	}
	return out
}

// Truncate corta a n runas sin romper caracteres multibyte.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
