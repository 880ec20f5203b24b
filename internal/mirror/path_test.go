package mirror

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plain file", "http://example.com/a.png", "downloads/example.com/a.png"},
		{"nested", "https://example.com/img/2024/b.jpg", "downloads/example.com/img/2024/b.jpg"},
		{"trailing slash gets index", "http://example.com/gallery/", "downloads/example.com/gallery/index"},
		{"bare host gets index", "http://example.com", "downloads/example.com/index"},
		{"root gets index", "http://example.com/", "downloads/example.com/index"},
		{"percent decoded", "http://example.com/my%20file.png", "downloads/example.com/my file.png"},
		{"port colon replaced", "http://example.com:8080/a.png", "downloads/example.com_8080/a.png"},
		{"query characters replaced", "http://example.com/a.php?id=1", "downloads/example.com/a.php_id=1"},
		{"duplicate separators collapsed", "http://example.com//a///b.png", "downloads/example.com/a/b.png"},
		{"backslash normalized", `http://example.com/a\b.png`, "downloads/example.com/a/b.png"},
		{"dot segments dropped", "http://example.com/../../etc/passwd", "downloads/example.com/etc/passwd"},
		{"encoded traversal dropped", "http://example.com/%2e%2e/x.png", "downloads/example.com/x.png"},
		{"fragment ignored", "http://example.com/a.png#top", "downloads/example.com/a.png"},
		{"illegal characters", `http://example.com/a*b"c<d>e|f.png`, "downloads/example.com/a_b_c_d_e_f.png"},
		{"slash in query is not a directory", "https://example.com/a.php?next=/b/", "downloads/example.com/a.php_next=/b"},
		{"bare host with query gets index", "http://example.com?x=1/", "downloads/example.com_x=1/index"},
		{"dotted directory gets index", "https://example.com/docs/v2.0/", "downloads/example.com/docs/v2.0/index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := LocalPath(DefaultRoot, tt.url)
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("LocalPath(%q) = %q, expected %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestLocalPathNFC(t *testing.T) {
	t.Parallel()

	// "e" + combining acute accent must map to the same path as precomposed "é".
	decomposed := LocalPath("out", "http://example.com/caf%65%CC%81.png")
	composed := LocalPath("out", "http://example.com/caf%C3%A9.png")
	if decomposed != composed {
		t.Errorf("expected NFC normalization, got %q and %q", decomposed, composed)
	}
}

func TestExtensionFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"http://example.com/a.png", "png"},
		{"http://example.com/a.PNG?size=2", "PNG"},
		{"http://example.com/page.html#x", "html"},
		{"http://example.com/archive.tar.gz", "gz"},
		{"http://example.com/", ""},
		{"http://example.com", ""},
		{"http://example.com/download?file=x.jpg", ""},
		{"http://example.com/v1.2/item", ""},
		{"https://example.com/docs/v2.0/", ""},
		{"https://example.com/users/john.doe/", ""},
		{"https://example.com/docs/v2.0/?page=2", ""},
	}
	for _, tt := range tests {
		if got := ExtensionFromURL(tt.url); got != tt.want {
			t.Errorf("ExtensionFromURL(%q) = %q, expected %q", tt.url, got, tt.want)
		}
	}
}

func TestExtensionFromContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ct   string
		want string
	}{
		{"text/html; charset=utf-8", "html"},
		{"image/png", "png"},
		{"image/svg+xml", "svg"},
		{"application/x-php", "x-php"},
		{"", ""},
		{"garbage", ""},
	}
	for _, tt := range tests {
		if got := ExtensionFromContentType(tt.ct); got != tt.want {
			t.Errorf("ExtensionFromContentType(%q) = %q, expected %q", tt.ct, got, tt.want)
		}
	}
}

func TestFileSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "f.bin")

	if _, ok, err := FileSize(p); ok || err != nil {
		t.Fatalf("expected missing file, got ok=%v err=%v", ok, err)
	}
	if err := os.WriteFile(p, []byte("12345"), 0o600); err != nil {
		t.Fatal(err)
	}
	size, ok, err := FileSize(p)
	if err != nil || !ok {
		t.Fatalf("expected existing file, got ok=%v err=%v", ok, err)
	}
	if size != 5 {
		t.Errorf("expected size 5, got %d", size)
	}
}
