package wordlist

import (
	"os"
	"path/filepath"
	"testing"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoad_Plain(t *testing.T) {
	path := writeList(t, "admin\nlogin\n\n# comment\nadmin\n")

	entries, skipped, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if !equal(entries, []string{"admin", "login"}) {
		t.Errorf("entries = %v", entries)
	}
}

func TestLoad_AppendsExtensions(t *testing.T) {
	path := writeList(t, "admin\n")

	entries, _, err := Load(path, []string{"php", ".html"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !equal(entries, []string{"admin", "admin.php", "admin.html"}) {
		t.Errorf("entries = %v", entries)
	}
}

func TestLoad_ExpandsPlaceholder(t *testing.T) {
	path := writeList(t, "index.%EXT%\n")

	entries, _, err := Load(path, []string{"php"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !equal(entries, []string{"index.php", "index"}) {
		t.Errorf("entries = %v", entries)
	}
}

func TestLoad_SkipsMalformedEntries(t *testing.T) {
	path := writeList(t, "good\nbad entry\nalso\tbad\n\xff\xfe\nfine\n")

	entries, skipped, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if skipped != 3 {
		t.Errorf("skipped = %d, want 3", skipped)
	}
	if !equal(entries, []string{"good", "fine"}) {
		t.Errorf("entries = %v", entries)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.txt"), nil); err == nil {
		t.Error("expected an error for a missing wordlist")
	}
}
