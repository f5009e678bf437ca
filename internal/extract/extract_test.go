package extract

import (
	"testing"
)

const samplePage = `<html>
<head>
  <link rel="stylesheet" href="/assets/site.css">
  <script src="/assets/app.js"></script>
</head>
<body>
  <a href="/docs/">Documentation</a>
  <a href="reports">Reports</a>
  <a href="/files/budget.xlsx">Budget</a>
  <a href="https://other-host.example/secret/">External</a>
  <a href="mailto:admin@example.com">Mail</a>
  <a href="javascript:void(0)">Nothing</a>
  <a href="#section">Anchor</a>
  <a href="/docs/?page=2">Paged</a>
  <img src="/assets/logo.png">
  <form action="/search"><iframe src="/embed/widget"></iframe></form>
</body>
</html>`

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestFromHTML(t *testing.T) {
	links := FromHTML([]byte(samplePage), "http://t/base/index.html")

	wantDirs := []string{
		"http://t/docs/",
		"http://t/base/reports", // resolved against the response URL
		"http://t/search",
		"http://t/embed/widget",
	}
	for _, d := range wantDirs {
		if !contains(links.Directories, d) {
			t.Errorf("missing directory link %s in %v", d, links.Directories)
		}
	}

	wantFiles := []string{
		"http://t/assets/site.css",
		"http://t/assets/app.js",
		"http://t/files/budget.xlsx",
		"http://t/assets/logo.png",
	}
	for _, f := range wantFiles {
		if !contains(links.Files, f) {
			t.Errorf("missing file link %s in %v", f, links.Files)
		}
	}

	for _, d := range links.Directories {
		if d == "https://other-host.example/secret/" {
			t.Error("other hosts are out of scope")
		}
	}

	// the query string is stripped, so /docs/?page=2 collapses into /docs/
	total := len(links.Directories) + len(links.Files)
	if total != len(wantDirs)+len(wantFiles) {
		t.Errorf("extracted %d links, want %d: %v %v",
			total, len(wantDirs)+len(wantFiles), links.Directories, links.Files)
	}
}

func TestFromHTML_GarbageBody(t *testing.T) {
	links := FromHTML([]byte{0xff, 0xfe, 0x00}, "http://t/")
	if len(links.Directories)+len(links.Files) > 0 {
		t.Errorf("garbage body produced links: %v %v", links.Directories, links.Files)
	}
}

func TestFromRobots(t *testing.T) {
	robots := []byte(`User-agent: *
Disallow: /admin/
Disallow: /private
Allow: /public/index.html
Disallow: /tmp/*.bak
disallow: /lower
Sitemap: https://t/sitemap.xml
`)

	links := FromRobots(robots, "http://t/somewhere/deep")

	for _, d := range []string{"http://t/admin/", "http://t/private", "http://t/lower"} {
		if !contains(links.Directories, d) {
			t.Errorf("missing robots directory %s in %v", d, links.Directories)
		}
	}
	if !contains(links.Files, "http://t/public/index.html") {
		t.Errorf("missing robots file entry in %v", links.Files)
	}
	for _, d := range links.Directories {
		if d == "http://t/tmp/*.bak" {
			t.Error("wildcard robots entries must be skipped")
		}
	}
}

func TestIsDirectoryLike(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/admin/", true},
		{"/admin", true},
		{"/app.js", false},
		{"/archive.tar.gz", false},
		{"/v1.2", false}, // looks like an extension, treated as a file
	}
	for _, tc := range cases {
		if got := IsDirectoryLike(tc.path); got != tc.want {
			t.Errorf("IsDirectoryLike(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
