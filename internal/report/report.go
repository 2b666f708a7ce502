// Package report renders the settings of a configuration for people and
// scripts.
package report

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/doridoridoriand/hdrconf/internal/config"
	"github.com/tidwall/sjson"
)

// DefaultGroup names the settings defined before any section marker.
const DefaultGroup = "default"

// Entry is one setting as shown in a report.
type Entry struct {
	Name    string
	Value   string
	Active  bool
	Section string
	File    string
}

// Group is a run of entries sharing a section.
type Group struct {
	Name    string
	Entries []Entry
}

// Summary counts entries.
type Summary struct {
	Total  int
	Active int
}

// Snapshot returns every setting of cfg in definition order.
func Snapshot(cfg *config.Config) []Entry {
	files := cfg.Files()
	settings := cfg.Settings()
	entries := make([]Entry, 0, len(settings))
	for _, s := range settings {
		entry := Entry{
			Name:    s.Name,
			Value:   s.Value,
			Active:  s.Active,
			Section: s.Section,
		}
		if s.File >= 0 && s.File < len(files) {
			entry.File = files[s.File].Path()
		}
		entries = append(entries, entry)
	}
	return entries
}

// Filter keeps the entries whose name contains a match for one of
// patterns. No patterns keeps everything.
func Filter(entries []Entry, patterns []string) ([]Entry, error) {
	if len(patterns) == 0 {
		return entries, nil
	}
	re, err := regexp.Compile(strings.Join(patterns, "|"))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	result := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if re.MatchString(entry.Name) {
			result = append(result, entry)
		}
	}
	return result, nil
}

// GroupBySection groups entries by section in order of first appearance.
func GroupBySection(entries []Entry) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Section)
		if name == "" {
			name = DefaultGroup
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	return groups
}

// Summarize counts total and active entries.
func Summarize(entries []Entry) Summary {
	summary := Summary{Total: len(entries)}
	for _, entry := range entries {
		if entry.Active {
			summary.Active++
		}
	}
	return summary
}

// WriteText prints entries grouped by section, one per line:
//
//	## System support
//	[x] MBEDTLS_HAVE_ASM
//	[ ] MBEDTLS_SSL_MAX_CONTENT_LEN 16384
func WriteText(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for i, group := range GroupBySection(entries) {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "## %s\n", group.Name)
		for _, entry := range group.Entries {
			fmt.Fprintln(bw, FormatEntry(entry))
		}
	}
	summary := Summarize(entries)
	if summary.Total > 0 {
		fmt.Fprintln(bw)
	}
	fmt.Fprintf(bw, "%d settings, %d active\n", summary.Total, summary.Active)
	return bw.Flush()
}

// FormatEntry renders one entry as "[x] NAME VALUE".
func FormatEntry(entry Entry) string {
	mark := "[ ]"
	if entry.Active {
		mark = "[x]"
	}
	line := mark + " " + entry.Name
	if entry.Value != "" {
		line += " " + entry.Value
	}
	return line
}

// WriteJSON prints entries as a JSON array of objects with the keys name,
// value, active, section and file.
func WriteJSON(w io.Writer, entries []Entry) error {
	doc := "[]"
	for _, entry := range entries {
		obj, err := encodeEntry(entry)
		if err != nil {
			return err
		}
		doc, err = sjson.SetRaw(doc, "-1", obj)
		if err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, doc+"\n")
	return err
}

func encodeEntry(entry Entry) (string, error) {
	obj := "{}"
	fields := []struct {
		path  string
		value interface{}
	}{
		{"name", entry.Name},
		{"value", entry.Value},
		{"active", entry.Active},
		{"section", entry.Section},
		{"file", entry.File},
	}
	var err error
	for _, field := range fields {
		obj, err = sjson.Set(obj, field.path, field.value)
		if err != nil {
			return "", err
		}
	}
	return obj, nil
}
