package input

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

// Discover expands paths and glob patterns (including "**") into a
// deduplicated list of regular files, in argument order. Stdin passes
// through untouched. A literal path that does not exist is an error; a
// pattern that matches nothing is not.
func Discover(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	for _, pattern := range patterns {
		if pattern == Stdin {
			if !seen[Stdin] {
				seen[Stdin] = true
				result = append(result, Stdin)
			}
			continue
		}

		var matches []string
		if hasMeta(pattern) {
			m, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return nil, apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "bad pattern %q: %v", pattern, err)
			}
			matches = m
		} else {
			if _, err := os.Stat(pattern); err != nil {
				return nil, apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "%s: %v", pattern, err)
			}
			matches = []string{pattern}
		}

		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				continue
			}
			info, err := os.Stat(abs)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if !seen[abs] {
				seen[abs] = true
				result = append(result, m)
			}
		}
	}

	return result, nil
}

func hasMeta(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
