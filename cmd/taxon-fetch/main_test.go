package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple paragraph",
			input: "<p>Hello world</p>",
			want:  "Hello world",
		},
		{
			name:  "skips scripts and styles",
			input: "<style>.x{color:red}</style><p>Visible</p><script>alert(1)</script>",
			want:  "Visible",
		},
		{
			name:  "skips navigation chrome",
			input: "<nav>Home About</nav><article>The story</article><footer>Legal</footer>",
			want:  "The story",
		},
		{
			name:  "collapses whitespace",
			input: "<p>Line 1</p>\n\n<p>  Line   2  </p>",
			want:  "Line 1 Line 2",
		},
		{
			name:  "plain text",
			input: "No HTML here",
			want:  "No HTML here",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(tt.input); got != tt.want {
				t.Errorf("extractText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFetchPageText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><h1>Title</h1><p>Body text</p></body></html>"))
	}))
	defer srv.Close()

	text, err := fetchPageText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetchPageText: %v", err)
	}
	if text != "Title Body text" {
		t.Errorf("text = %q, want %q", text, "Title Body text")
	}
}

func TestFetchPageTextStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	if _, err := fetchPageText(context.Background(), srv.URL); err == nil {
		t.Error("non-200 status must fail")
	}
}
