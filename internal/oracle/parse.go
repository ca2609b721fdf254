package oracle

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:python)?\n(.*?)\n```")

// ExtractCodeBlocks pulls code out of oracle text. Fenced blocks
// (``` or ```python) are preferred; when none exist, runs of lines
// indented by four spaces or a tab are treated as code.
func ExtractCodeBlocks(text string) []string {
	var blocks []string
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, m[1])
	}
	if len(blocks) > 0 {
		return blocks
	}

	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "    "):
			current = append(current, line[4:])
		case strings.HasPrefix(line, "\t"):
			current = append(current, line[1:])
		case strings.TrimSpace(line) == "" && len(current) > 0:
			current = append(current, "")
		default:
			flush()
		}
	}
	flush()
	return blocks
}

// ExtractJSON finds the last parseable JSON object embedded in possibly
// messy oracle output. The second return is false when none parses.
func ExtractJSON(text string) (map[string]any, bool) {
	// The whole response may already be a clean object.
	var whole map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &whole); err == nil {
		return whole, true
	}

	// Otherwise scan balanced {...} candidates from the end.
	for end := strings.LastIndexByte(text, '}'); end >= 0; end = strings.LastIndexByte(text[:end], '}') {
		depth := 0
		for start := end; start >= 0; start-- {
			switch text[start] {
			case '}':
				depth++
			case '{':
				depth--
			}
			if depth == 0 {
				var obj map[string]any
				if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil {
					return obj, true
				}
				break
			}
		}
	}
	return nil, false
}
