package editor

import (
	"regexp"
	"strings"
)

// SourceSettings configure the source surface
type SourceSettings struct {
	Mode         string `json:"mode"`
	IndentUnit   int    `json:"indent_unit"`
	TabSize      int    `json:"tab_size"`
	LineNumbers  bool   `json:"line_numbers"`
	LineWrapping bool   `json:"line_wrapping"`
}

// SourceView is the raw HTML editing surface. It starts clean; any edit
// that leaves a different value makes it dirty.
type SourceView struct {
	settings SourceSettings
	initial  string
	value    string
}

// NewSourceView opens a source surface on content, re-indenting every line
func NewSourceView(content string, settings SourceSettings) *SourceView {
	if settings.IndentUnit <= 0 {
		settings.IndentUnit = 2
	}
	indented := IndentHTML(content, settings.IndentUnit)
	return &SourceView{settings: settings, initial: indented, value: indented}
}

// Settings returns the surface settings
func (v *SourceView) Settings() SourceSettings {
	return v.settings
}

// Value returns the current source text
func (v *SourceView) Value() string {
	return v.value
}

// SetValue replaces the source text
func (v *SourceView) SetValue(value string) {
	v.value = value
}

// IsDirty reports whether the text differs from what was opened
func (v *SourceView) IsDirty() bool {
	return v.value != v.initial
}

var tagPattern = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9-]*)[^>]*?(/?)>`)

// elements that never have a closing tag
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IndentHTML re-indents each line by its element nesting depth. Lines that
// start with a closing tag are outdented to match their opening tag. Blank
// lines are kept empty.
func IndentHTML(content string, unit int) string {
	lines := strings.Split(content, "\n")
	depth := 0
	pad := strings.Repeat(" ", unit)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			lines[i] = ""
			continue
		}

		opens, closes, leadingCloses := tagBalance(trimmed)
		lineDepth := depth - leadingCloses
		if lineDepth < 0 {
			lineDepth = 0
		}
		lines[i] = strings.Repeat(pad, lineDepth) + trimmed

		depth += opens - closes
		if depth < 0 {
			depth = 0
		}
	}
	return strings.Join(lines, "\n")
}

// tagBalance counts opening and closing tags on a line, and how many closing
// tags precede its first opening tag
func tagBalance(line string) (opens, closes, leadingCloses int) {
	seenOpen := false
	for _, m := range tagPattern.FindAllStringSubmatch(line, -1) {
		closing, name, selfClosing := m[1] == "/", strings.ToLower(m[2]), m[3] == "/"
		switch {
		case closing:
			closes++
			if !seenOpen {
				leadingCloses++
			}
		case selfClosing || voidElements[name]:
		default:
			opens++
			seenOpen = true
		}
	}
	// only a line that begins with a closing tag is outdented
	if leadingCloses > 0 && !strings.HasPrefix(line, "</") {
		leadingCloses = 0
	}
	return opens, closes, leadingCloses
}
