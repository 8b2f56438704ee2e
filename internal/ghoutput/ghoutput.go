// Package ghoutput writes step outputs to the GitHub Actions GITHUB_OUTPUT file.
package ghoutput

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

const delimiterPrefix = "ghadelimiter_"

// Write appends values to the output file at path. An empty path is a no-op.
// Multi-line values use the heredoc form.
func Write(path string, values map[string]string) error {
	path = strings.TrimSpace(path)
	if path == "" || len(values) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open GITHUB_OUTPUT: %w", err)
	}
	defer func() { _ = f.Close() }()

	keys := make([]string, 0, len(values))
	for k := range values {
		if strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := f.WriteString(format(key, values[key])); err != nil {
			return fmt.Errorf("write output %s: %w", key, err)
		}
	}
	return nil
}

func format(key, value string) string {
	if !strings.ContainsAny(value, "\r\n") {
		return key + "=" + value + "\n"
	}
	delim := delimiterPrefix + key
	for strings.Contains(value, delim) {
		delim += "_"
	}
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", key, delim, value, delim)
}
