package colorize

import (
	"os"
	"strings"
	"testing"
)

func withNoColor(t *testing.T) {
	t.Helper()
	old := os.Getenv("REVERSE_NO_COLOR")
	os.Setenv("REVERSE_NO_COLOR", "1")
	t.Cleanup(func() { os.Setenv("REVERSE_NO_COLOR", old) })
}

func TestColorizeAssemblyPassthroughWhenDisabled(t *testing.T) {
	withNoColor(t)
	code := "mov eax, ebx"
	got, err := ColorizeAssembly(code)
	if err != nil {
		t.Fatalf("ColorizeAssembly error: %v", err)
	}
	if got != code {
		t.Fatalf("ColorizeAssembly() = %q, want unchanged %q", got, code)
	}
}

func TestColorizeInstructionLinePassthroughWhenDisabled(t *testing.T) {
	withNoColor(t)
	line := "1000  mov eax, ebx"
	if got := ColorizeInstructionLine(line); got != line {
		t.Fatalf("ColorizeInstructionLine() = %q, want unchanged %q", got, line)
	}
}

func TestIsHexAddress(t *testing.T) {
	cases := map[string]bool{
		"1000":   true,
		"deadBE": true,
		"":       false,
		"zz12":   false,
		"10 20":  false,
	}
	for s, want := range cases {
		if got := isHexAddress(s); got != want {
			t.Errorf("isHexAddress(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestColorizeInstructionLineCommentPrefix(t *testing.T) {
	// A comment line should take the dedicated comment color path rather
	// than attempting to split on the address/body separator, even with
	// colorization enabled.
	line := "; a comment"
	got := ColorizeInstructionLine(line)
	if !strings.Contains(got, "a comment") {
		t.Fatalf("ColorizeInstructionLine(comment) = %q, lost the comment text", got)
	}
}
