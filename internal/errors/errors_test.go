package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "initializer failure",
			code:    "E101",
			wantMsg: "Page initializer failed",
			wantCat: CategoryRender,
		},
		{
			name:    "payload decode",
			code:    "E105",
			wantMsg: "Page payload could not be decoded",
			wantCat: CategoryHydration,
		},
		{
			name:    "config",
			code:    "E120",
			wantMsg: "Invalid configuration",
			wantCat: CategoryConfig,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := New("E102").Wrap(cause).With("path", "/posts")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	if got := err.Error(); got != "E102: Data drain failed: boom" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if Code(wrapped) != "E102" {
		t.Errorf("Code = %q", Code(wrapped))
	}
	if !Is(wrapped, "E102") || Is(wrapped, "E101") {
		t.Error("Is should match only the carried code")
	}
}

func TestIsNested(t *testing.T) {
	inner := New("E104").Wrap(stderrors.New("func value"))
	outer := New("E102").Wrap(inner)

	if !Is(outer, "E104") {
		t.Error("nested code should be found")
	}
	if Code(outer) != "E102" {
		t.Errorf("outermost code expected, got %q", Code(outer))
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E101") != nil {
		t.Error("nil in, nil out")
	}

	plain := stderrors.New("x")
	if Code(FromError(plain, "E101")) != "E101" {
		t.Error("plain error should be wrapped")
	}

	coded := New("E103")
	if FromError(coded, "E101") != error(coded) {
		t.Error("coded errors are returned unchanged")
	}
}

func TestLogAttrs(t *testing.T) {
	attrs := New("E130").Wrap(stderrors.New("denied")).With("key", "a/b").LogAttrs()
	joined := fmt.Sprint(attrs...)
	for _, want := range []string{"E130", "storage", "a/b", "denied"} {
		if !strings.Contains(joined, want) {
			t.Errorf("attrs %v missing %q", attrs, want)
		}
	}
}

func TestFormatter(t *testing.T) {
	err := New("E103").With("page", "Posts")

	out := Formatter{}.Format(err)
	for _, want := range []string{"ERROR E103: Reserved prop key", "page: Posts", "Hint: Rename"} {
		if !strings.Contains(out, want) {
			t.Errorf("format missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("colors disabled but escape codes present")
	}

	var buf bytes.Buffer
	Formatter{Color: true}.Fprint(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "plain") || !strings.Contains(buf.String(), "\033[") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("aaa bbb ccc ddd", 7)
	if len(lines) != 2 || lines[0] != "aaa bbb" {
		t.Errorf("wrapText = %q", lines)
	}
}

func TestRegistryCodesSorted(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 || codes[0] != "E101" {
		t.Fatalf("codes = %v", codes)
	}
	// Malformed cookies are skipped silently, so there is no cookie code.
	if _, ok := GetTemplate("E100"); ok {
		t.Error("E100 should not be registered")
	}
	if _, ok := GetTemplate("E121"); !ok {
		t.Error("E121 should be registered")
	}
}
