package reaction

import "strings"

// ParseEC extracts the EC numbers from an IMG-style enzyme annotation, where
// entries are joined by "<<>>" and look like "EC:1.1.1.1=alcohol
// dehydrogenase".  The result is "|1.1.1.1|2.7.1.1|", or "" when the field
// carries no EC number.
func ParseEC(field string) string {
	var codes []string
	for _, entry := range strings.Split(field, "<<>>") {
		start := strings.Index(entry, "EC:")
		if start < 0 {
			continue
		}
		code := entry[start+len("EC:"):]
		if end := strings.IndexByte(code, '='); end >= 0 {
			code = code[:end]
		}
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return ""
	}
	return "|" + strings.Join(codes, "|") + "|"
}
