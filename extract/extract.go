package extract

import (
	"regexp"
	"strings"
)

const fence = "```"

// Block is a labeled code block pulled out of a model reply.
type Block struct {
	Path    string
	Tag     string
	Content string
	Found   bool
}

// labeledPattern builds the matcher for a "### <path> <tag>" header followed by a fenced body.
// The header may be indented and padded; blank lines may separate it from the opening fence.
// The opening fence may repeat the tag. The first closing fence at the start of a line ends the body.
func labeledPattern(path, tag string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?ms)^[ \t]*###[ \t]*`)
	b.WriteString(regexp.QuoteMeta(path))
	b.WriteString(`[ \t]+`)
	b.WriteString(regexp.QuoteMeta(tag))
	b.WriteString(`[ \t]*\r?\n\s*`)
	b.WriteString(fence)
	b.WriteString(`(?:`)
	b.WriteString(regexp.QuoteMeta(tag))
	b.WriteString(`)?[ \t]*\r?\n(?:(.*?)\r?\n)??[ \t]*`)
	b.WriteString(fence)
	return regexp.MustCompile(b.String())
}

// Extract returns the body of the block labeled with path and tag, dedented and with
// surrounding blank lines removed. The boolean is false when no such block exists.
func Extract(reply, path, tag string) (string, bool) {
	if path == "" || tag == "" {
		return "", false
	}
	m := labeledPattern(path, tag).FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	return clean(m[1]), true
}

// ExtractAll runs Extract once per entry of want (path -> tag) against the same reply.
func ExtractAll(reply string, want map[string]string) map[string]Block {
	blocks := make(map[string]Block, len(want))
	for path, tag := range want {
		content, ok := Extract(reply, path, tag)
		blocks[path] = Block{Path: path, Tag: tag, Content: content, Found: ok}
	}
	return blocks
}

// ExtractFenced returns the body of the first fenced block whose opening fence names tag,
// or of the first fenced block of any language when tag is empty. Labels are ignored.
func ExtractFenced(reply, tag string) (string, bool) {
	var body []string
	inBlock, matching := false, false
	for _, line := range strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if !inBlock {
			if strings.HasPrefix(trimmed, fence) {
				inBlock = true
				lang := strings.TrimSpace(strings.TrimPrefix(trimmed, fence))
				matching = tag == "" || lang == tag
				body = body[:0]
			}
			continue
		}
		if trimmed == fence {
			if matching {
				return clean(strings.Join(body, "\n")), true
			}
			inBlock = false
			continue
		}
		body = append(body, line)
	}
	return "", false
}

func clean(body string) string {
	return trimBlankLines(Dedent(body))
}

// Dedent removes the longest leading whitespace prefix shared by every non-blank line.
// Whitespace-only lines are emptied and do not count towards the prefix.
func Dedent(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	margin := ""
	first := true
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			margin = indent
			first = false
			continue
		}
		margin = commonPrefix(margin, indent)
	}
	if margin == "" {
		return strings.Join(lines, "\n")
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if start == end {
		return ""
	}
	lines = lines[start:end]
	lines[len(lines)-1] = strings.TrimRight(lines[len(lines)-1], " \t")
	return strings.Join(lines, "\n")
}
