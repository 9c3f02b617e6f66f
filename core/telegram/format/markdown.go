// Package format renders model-generated text safely as Telegram MarkdownV2.
package format

import "strings"

var mdv2 = strings.NewReplacer(
	`\`, `\\`, `_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
	`~`, `\~`, "`", "\\`", `>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`,
	`=`, `\=`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `.`, `\.`, `!`, `\!`,
)

// MDV2 escapes every MarkdownV2 special character in text.
func MDV2(text string) string {
	return mdv2.Replace(text)
}

// Bold escapes text and wraps it in bold markers.
func Bold(text string) string {
	return "*" + MDV2(text) + "*"
}

// Italic escapes text and wraps it in italic markers.
func Italic(text string) string {
	return "_" + MDV2(text) + "_"
}
