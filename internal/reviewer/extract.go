package reviewer

import (
	"regexp"
	"strings"
)

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*\\n([\\s\\S]*?)```")

// ExtractJSON pulls the first JSON object out of a reply. A fenced code
// block wins; otherwise the first balanced {...} span is returned. Braces
// inside string literals are skipped. Returns "" when nothing is found.
func ExtractJSON(content string) string {
	if matches := jsonBlockRegex.FindStringSubmatch(content); len(matches) > 1 {
		if block := strings.TrimSpace(matches[1]); strings.HasPrefix(block, "{") {
			return block
		}
	}

	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	return ""
}
