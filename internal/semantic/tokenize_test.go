package semantic

import (
	"strings"
	"testing"

	"fathom/internal/config"
)

func testTokenizer() *tokenizer {
	return newTokenizer(config.DefaultVocab())
}

func TestTokens(t *testing.T) {
	tk := testTokenizer()
	tests := []struct {
		name string
		want string
	}{
		{"parseBody", "parse body"},
		{"UserService", "user service"},
		{"XMLHttpRequest", "xml http request"},
		{"user_name", "user name"},
		{"user-profile", "user profile"},
		{"user.service", "user service"},
		{"load2Path", "load path"},
		{"ID", "id"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := strings.Join(tk.tokens(tt.name), " "); got != tt.want {
			t.Errorf("tokens(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestKeep(t *testing.T) {
	tk := testTokenizer()
	tests := []struct {
		tok  string
		want bool
	}{
		{"session", true},
		{"invoice", true},
		{"id", true},   // short but a protected abbreviation
		{"db", true},   // likewise
		{"ab", false},  // short and unknown
		{"get", false}, // stop-word
		{"data", false},
		{"tmp", false},
	}
	for _, tt := range tests {
		if got := tk.keep(tt.tok); got != tt.want {
			t.Errorf("keep(%q) = %v, want %v", tt.tok, got, tt.want)
		}
	}
}

func TestSignificant(t *testing.T) {
	tk := testTokenizer()
	tests := []struct {
		name string
		want string
	}{
		{"getUserData", "user"}, // get and data are stop-words
		{"SessionPool", "session pool"},
		{"parseHTTPHeader", "parse http header"},
		{"x", ""},
		{"tmp", ""},
	}
	for _, tt := range tests {
		if got := strings.Join(tk.significant(tt.name), " "); got != tt.want {
			t.Errorf("significant(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
