// Package colorize renders a listing document as syntax-highlighted text.
// It is consumed only by cmd/reverse; the core engine package never
// imports it, keeping the "user interface" concern out of the
// disassembly engine itself.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss/v2"
)

var (
	addressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	commentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("176"))
)

func noColor() bool { return os.Getenv("REVERSE_NO_COLOR") != "" }

func getAssemblyLexer() chroma.Lexer {
	candidates := []string{"nasm", "armasm", "gas", "GAS", "Gas"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func getDisasmStyle() *chroma.Style {
	candidates := []string{"disasm-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// ColorizeAssembly applies syntax highlighting to a block of assembly text.
func ColorizeAssembly(code string) (string, error) {
	if noColor() {
		return code, nil
	}
	lexer := getAssemblyLexer()
	if lexer == nil {
		return code, nil
	}
	style := getDisasmStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}

// ColorizeInstructionLine colorizes a single formatted listing line,
// coloring the leading address separately from the rest so it stays
// legible against any style's background.
func ColorizeInstructionLine(line string) string {
	if noColor() {
		return line
	}

	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, ";") {
		return commentStyle.Render(line)
	}

	parts := strings.SplitN(line, "  ", 2)
	if len(parts) < 2 || !isHexAddress(parts[0]) {
		return colorizeFullLine(line)
	}

	addrColored := addressStyle.Render(parts[0])
	return addrColored + "  " + colorizeFullLine(parts[1])
}

func isHexAddress(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !((ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')) {
			return false
		}
	}
	return true
}

func colorizeFullLine(line string) string {
	if noColor() {
		return line
	}
	lexer := getAssemblyLexer()
	if lexer == nil {
		return line
	}
	style := getDisasmStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return line
	}
	return buf.String()
}
