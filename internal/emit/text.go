package emit

import (
	"strings"
)

// textWidth is the width section banners are centred in.
const textWidth = 120

// banner renders a section header boxed in comment slashes.
func banner(title string) string {
	pad := strings.Repeat(" ", (textWidth-len(title))/2)
	line := "//" + pad + title + pad + "//"
	rule := strings.Repeat("/", len(line)) + "\n"
	return rule + line + "\n" + rule
}

// indent prefixes every line after a newline with a tab.
func indent(s string) string {
	if s != "" && s[0] != '\n' {
		s = "\t" + s
	}
	return strings.ReplaceAll(s, "\n", "\n\t")
}

// ljust pads s with spaces to width.
func ljust(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func maxLen(ss ...string) int {
	n := 0
	for _, s := range ss {
		n = max(n, len(s))
	}
	return n
}
