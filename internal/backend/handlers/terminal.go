package handlers

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiCyan   = "\x1b[36m"
)

type cardKind int

const (
	cardSuccess cardKind = iota
	cardWarning
	cardError
)

type metric struct {
	Name  string
	Value string
}

const cardBorder = ansiDim + "─────────────────────────────────────────────" + ansiReset

// renderTerminalCard карточка статуса для вывода curl в терминале
func renderTerminalCard(title string, metrics []metric, kind cardKind) string {
	color, icon := ansiGreen, "✅"
	switch kind {
	case cardWarning:
		color, icon = ansiYellow, "⚠️"
	case cardError:
		color, icon = ansiRed, "❌"
	}

	width := 0
	for _, m := range metrics {
		width = max(width, utf8.RuneCountInString(m.Name)+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s╭%s╮%s\n", color, cardBorder, ansiReset)
	fmt.Fprintf(&b, "│ %s%s%s SYSTEM STATUS: %-26s %s │\n", ansiBold, color, icon, title, ansiReset)
	fmt.Fprintf(&b, "%s├%s┤%s", color, cardBorder, ansiReset)

	for _, m := range metrics {
		label := m.Name + ":"
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(label))
		fmt.Fprintf(&b, "\n│  %s%s%s%s %s%s%s", ansiCyan, label, ansiReset, pad, ansiBold, m.Value, ansiReset)
	}

	fmt.Fprintf(&b, "\n%s╰%s╯%s\n", color, cardBorder, ansiReset)
	return b.String()
}
