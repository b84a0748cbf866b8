package paths

import "strings"

// Quote single-quotes s for a POSIX shell unless it is made only of
// characters the shell treats literally. A leading ~/ stays outside the
// quotes so it still expands.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if rest, ok := strings.CutPrefix(s, "~/"); ok && rest != "" {
		return "~/" + Quote(rest)
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("@%+=:,./_-", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
