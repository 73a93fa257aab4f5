package classify

import "strings"

// Wrappers a model reply may carry around its JSON object, stripped in a
// fixed precedence order before the brace scan.
const (
	thinkingOpen  = "<thinking>"
	thinkingClose = "</thinking>"
)

// ExtractJSON locates the JSON object embedded in a free-text model reply.
// Precedence: strip thinking sections, strip a fenced code block wrapper,
// then take the outermost {...} span. Returns ok=false when no object is
// found; the caller treats that as "no JSON", not an error to surface.
func ExtractJSON(text string) (string, bool) {
	text = stripThinking(text)
	text = stripCodeFence(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// stripThinking removes every <thinking>...</thinking> section. An opening
// tag without a closing one drops the rest of the text, since anything after
// it is reasoning, not answer.
func stripThinking(text string) string {
	for {
		open := strings.Index(text, thinkingOpen)
		if open == -1 {
			return text
		}
		close := strings.Index(text[open:], thinkingClose)
		if close == -1 {
			return text[:open]
		}
		text = text[:open] + text[open+close+len(thinkingClose):]
	}
}

// stripCodeFence unwraps a ```json ... ``` (or bare ```) block when the
// reply's JSON is fenced. Text outside the fence is discarded.
func stripCodeFence(text string) string {
	open := strings.Index(text, "```")
	if open == -1 {
		return text
	}
	rest := text[open+3:]
	// Skip the language tag on the opening fence line, if any.
	if nl := strings.Index(rest, "\n"); nl != -1 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || isFenceTag(firstLine) {
			rest = rest[nl+1:]
		}
	}
	if close := strings.Index(rest, "```"); close != -1 {
		return rest[:close]
	}
	return rest
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
