package archive

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// Filter selects entries whose metadata field Key matches the shell glob
// Pattern. A list field matches when any element does.
type Filter struct {
	Key     string `json:"key"`
	Pattern string `json:"value"`
}

// ParseFilter parses KEY,GLOB. Double quotes around the glob are dropped.
func ParseFilter(s string) (Filter, error) {
	key, pattern, ok := strings.Cut(s, ",")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Filter{}, fmt.Errorf("invalid search filter %q, want Keyword,\"glob\"", s)
	}
	if len(pattern) >= 2 && pattern[0] == '"' && pattern[len(pattern)-1] == '"' {
		pattern = pattern[1 : len(pattern)-1]
	}
	return Filter{Key: key, Pattern: pattern}, nil
}

// Match is one metadata file that passed a Filter.
type Match struct {
	Path    string         `json:"filename"`
	Content map[string]any `json:"content"`
}

// Search walks root for metadata.json files and calls fn for each one that
// matches f, in lexical path order. It returns the number of matches.
func Search(root string, f Filter, fn func(Match) error) (int, error) {
	g, err := glob.Compile(f.Pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid glob %q: %w", f.Pattern, err)
	}

	found := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != MetadataFile {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var content map[string]any
		if err := json.Unmarshal(data, &content); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		if !matchValue(g, content, f.Key) {
			return nil
		}
		found++
		return fn(Match{Path: path, Content: content})
	})
	return found, err
}

func matchValue(g glob.Glob, content map[string]any, key string) bool {
	v, ok := content[key]
	if !ok {
		return false
	}
	values, isList := v.([]any)
	if !isList {
		values = []any{v}
	}
	for _, value := range values {
		if g.Match(stringify(value)) {
			return true
		}
	}
	return false
}

// stringify renders JSON scalars the way they read in the metadata file,
// with booleans and null spelled True, False and None.
func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}
