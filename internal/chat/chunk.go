package chat

import "strings"

// Chunk splits text into pieces of at most maxRunes runes, preferring to
// break on a newline, then on a space.
func Chunk(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return []string{text}
	}

	var out []string
	for len(runes) > maxRunes {
		cut := maxRunes
		if next := runes[maxRunes]; next != ' ' && next != '\n' {
			window := string(runes[:maxRunes])
			if i := strings.LastIndex(window, "\n"); i > 0 {
				cut = len([]rune(window[:i]))
			} else if i := strings.LastIndex(window, " "); i > 0 {
				cut = len([]rune(window[:i]))
			}
		}
		if piece := strings.TrimRight(string(runes[:cut]), " \n"); piece != "" {
			out = append(out, piece)
		}
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " \n"))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
