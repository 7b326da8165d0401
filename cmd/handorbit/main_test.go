package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestViewerURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{addr: "0.0.0.0:5000", want: "http://localhost:5000"},
		{addr: ":8080", want: "http://localhost:8080"},
		{addr: "127.0.0.1:5000", want: "http://127.0.0.1:5000"},
		{addr: "[::]:5000", want: "http://localhost:5000"},
		{addr: "example", want: "http://example"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := viewerURL(tt.addr); got != tt.want {
				t.Errorf("viewerURL(%q) = %q, want %q", tt.addr, got, tt.want)
			}
		})
	}
}

func TestFindWebDir_DataDir(t *testing.T) {
	dataDir := t.TempDir()
	t.Chdir(t.TempDir())

	if got := findWebDir(dataDir); got != "" {
		t.Errorf("findWebDir() = %q, want empty", got)
	}

	web := filepath.Join(dataDir, "web")
	if err := os.Mkdir(web, 0755); err != nil {
		t.Fatal(err)
	}
	if got := findWebDir(dataDir); got != web {
		t.Errorf("findWebDir() = %q, want %q", got, web)
	}
}

func TestFindWebDir_ShippedViewer(t *testing.T) {
	dir := findWebDir(t.TempDir())
	if dir == "" {
		t.Fatal("findWebDir() found no viewer directory")
	}

	page, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		t.Fatalf("read viewer page: %v", err)
	}
	for _, want := range []string{"/ws", `"gesture_update"`, `"start_detection"`} {
		if !strings.Contains(string(page), want) {
			t.Errorf("viewer page does not reference %s", want)
		}
	}
}
