package ui

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestFormatMessage_WithoutColors(t *testing.T) {
	console := &Console{useColors: false}

	msg := console.formatMessage(StyleError, "plain message")
	if msg != "plain message" {
		t.Errorf("Expected unstyled message, got %q", msg)
	}
}

func TestFormatMessage_WithColors(t *testing.T) {
	console := &Console{useColors: true}

	tests := []struct {
		name  string
		style ConsoleStyle
		color string
	}{
		{"error", StyleError, colorRed},
		{"warning", StyleWarning, colorYellow},
		{"success", StyleSuccess, colorGreen},
		{"info", StyleInfo, colorBlue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := console.formatMessage(tt.style, "hello")
			if !strings.HasPrefix(msg, tt.color) {
				t.Errorf("Expected message to start with color code %q, got %q", tt.color, msg)
			}
			if !strings.HasSuffix(msg, colorReset) {
				t.Errorf("Expected message to end with reset code, got %q", msg)
			}
		})
	}
}

func TestFormatMessage_NormalStyleUnchanged(t *testing.T) {
	console := &Console{useColors: true}

	msg := console.formatMessage(StyleNormal, "hello")
	if msg != "hello" {
		t.Errorf("Expected normal style to pass through, got %q", msg)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %s", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Failed to read captured output: %s", err)
	}
	return string(data)
}

func TestPrintStage(t *testing.T) {
	plain := captureStdout(t, func() {
		console := &Console{useColors: false}
		console.PrintStage(colorGreen, "🚧 Stage 1: Acquiring image")
	})
	if plain != "🚧 Stage 1: Acquiring image\n" {
		t.Errorf("Expected plain line on non-terminal output, got %q", plain)
	}

	colored := captureStdout(t, func() {
		console := &Console{useColors: true}
		console.PrintStage(colorGreen, "🚧 Stage 1: Acquiring image")
	})
	if !strings.HasPrefix(colored, colorGreen) || !strings.HasSuffix(colored, colorReset+"\n") {
		t.Errorf("Expected colored line with reset, got %q", colored)
	}

	uncolored := captureStdout(t, func() {
		console := &Console{useColors: true}
		console.PrintStage("", "no stage color")
	})
	if uncolored != "no stage color\n" {
		t.Errorf("Expected plain line when no color is given, got %q", uncolored)
	}
}

func TestFormatErrorMessage(t *testing.T) {
	console := NewConsole()

	tests := []struct {
		name       string
		context    string
		cause      string
		suggestion string
		expected   string
	}{
		{
			name:       "all parts",
			context:    "Extraction failed",
			cause:      "archive was empty",
			suggestion: "re-run with --keep-archive",
			expected:   "Extraction failed\nCause: archive was empty\nSuggestion: re-run with --keep-archive",
		},
		{
			name:     "context only",
			context:  "Extraction failed",
			expected: "Extraction failed",
		},
		{
			name:     "cause only",
			cause:    "archive was empty",
			expected: "Cause: archive was empty",
		},
		{
			name:     "empty",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := console.FormatErrorMessage(tt.context, tt.cause, tt.suggestion)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
