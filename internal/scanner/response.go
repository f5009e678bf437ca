package scanner

import "time"

// Response holds the outcome of a single probe. Once it has been classified
// by the filter pipeline it is immutable; Body is transient and cleared after
// filtering and link extraction.
type Response struct {
	URL           string            `json:"url"`
	Path          string            `json:"path"`
	Method        string            `json:"method"`
	StatusCode    int               `json:"status"`
	ContentLength int64             `json:"content_length"`
	WordCount     int               `json:"word_count"`
	LineCount     int               `json:"line_count"`
	Headers       map[string]string `json:"headers,omitempty"`
	RedirectURL   string            `json:"redirect,omitempty"`

	Body     []byte        `json:"-"`
	Duration time.Duration `json:"-"`
}

// IsDirectoryLike reports whether the response points at a directory: either
// the path already ends in a slash, or the server redirected to the
// slash-terminated form of the same path.
func (r *Response) IsDirectoryLike() bool {
	if len(r.Path) > 0 && r.Path[len(r.Path)-1] == '/' {
		return true
	}
	if r.StatusCode >= 300 && r.StatusCode < 400 && r.RedirectURL != "" {
		if r.RedirectURL == r.URL+"/" {
			return true
		}
		if len(r.RedirectURL) > 0 && r.RedirectURL[len(r.RedirectURL)-1] == '/' &&
			len(r.Path) > 0 && hasPathSuffix(r.RedirectURL, r.Path+"/") {
			return true
		}
	}
	return false
}

func hasPathSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
