package extract

import (
	"bytes"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// attrs holding link targets worth probing.
var linkAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"script": "src",
	"img":    "src",
	"iframe": "src",
	"form":   "action",
}

// robotsEntry matches Allow/Disallow path declarations in robots.txt.
var robotsEntry = regexp.MustCompile(`(?im)^\s*(?:allow|disallow):\s*(/\S*)`)

// Links is the classified output of one extraction pass. Directories feed
// the recursion policy as full scan targets; files are issued as single
// direct probes.
type Links struct {
	Directories []string
	Files       []string
}

// FromHTML walks the parsed body and collects same-host link targets from
// href, src, and action attributes, normalized against the response URL.
// Unparsable bodies yield no links; extraction is best-effort.
func FromHTML(body []byte, responseURL string) Links {
	base, err := url.Parse(responseURL)
	if err != nil {
		return Links{}
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Links{}
	}

	collect := newCollector(base)

	var walker func(*html.Node)
	walker = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attrName, ok := linkAttrs[n.Data]; ok {
				for _, attr := range n.Attr {
					if attr.Key == attrName {
						collect.add(attr.Val)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walker(c)
		}
	}
	walker(doc)

	return collect.links
}

// FromRobots collects Allow/Disallow path entries from a robots.txt body,
// resolved against the site root. Wildcard path entries are skipped.
func FromRobots(body []byte, siteURL string) Links {
	base, err := url.Parse(siteURL)
	if err != nil {
		return Links{}
	}
	base.Path = ""

	collect := newCollector(base)
	for _, m := range robotsEntry.FindAllSubmatch(body, -1) {
		entry := string(m[1])
		if strings.ContainsAny(entry, "*$") {
			continue
		}
		collect.add(entry)
	}

	return collect.links
}

// collector normalizes raw link values and classifies them.
type collector struct {
	base  *url.URL
	seen  map[string]struct{}
	links Links
}

func newCollector(base *url.URL) *collector {
	return &collector{base: base, seen: make(map[string]struct{})}
}

func (c *collector) add(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return
	}

	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "tel:") {
		return
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return
	}

	resolved := c.base.ResolveReference(ref)
	if resolved.Host != c.base.Host {
		return // out of scope
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return
	}

	resolved.RawQuery = ""
	resolved.Fragment = ""
	if resolved.Path == "" || resolved.Path == "/" {
		return
	}

	target := resolved.String()
	if _, ok := c.seen[target]; ok {
		return
	}
	c.seen[target] = struct{}{}

	if IsDirectoryLike(resolved.Path) {
		c.links.Directories = append(c.links.Directories, target)
	} else {
		c.links.Files = append(c.links.Files, target)
	}
}

// IsDirectoryLike reports whether a path names a directory rather than a
// file: a trailing slash, or a final segment without an extension.
func IsDirectoryLike(p string) bool {
	if strings.HasSuffix(p, "/") {
		return true
	}
	return path.Ext(path.Base(p)) == ""
}
