package wordlist

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Load reads the wordlist and returns the de-duplicated entries to fuzz.
// Extensions are expanded via %EXT% placeholders. Malformed entries (invalid
// UTF-8, embedded whitespace) are skipped, not fatal; the skip count lets the
// caller print one warning instead of failing the run.
func Load(path string, extensions []string) (entries []string, skipped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading wordlist %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	seen := make(map[string]struct{}, len(lines))

	add := func(entry string) {
		if entry == "" {
			return
		}
		if _, ok := seen[entry]; !ok {
			seen[entry] = struct{}{}
			entries = append(entries, entry)
		}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !utf8.ValidString(line) || strings.ContainsAny(line, " \t") {
			skipped++
			continue
		}

		if strings.Contains(line, "%EXT%") {
			for _, ext := range extensions {
				ext = strings.TrimPrefix(ext, ".")
				add(strings.ReplaceAll(line, "%EXT%", ext))
			}
			// also keep the bare form without the placeholder
			bare := strings.ReplaceAll(line, ".%EXT%", "")
			bare = strings.ReplaceAll(bare, "%EXT%", "")
			add(bare)
		} else {
			add(line)
			for _, ext := range extensions {
				ext = strings.TrimPrefix(ext, ".")
				add(line + "." + ext)
			}
		}
	}

	return entries, skipped, nil
}
