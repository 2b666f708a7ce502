package config

import (
	"regexp"
	"strings"
)

// LineKind identifies the shape of a configuration file line.
type LineKind int

const (
	LineVerbatim LineKind = iota
	LineDefine
	LineGuard
	LineSection
)

func (k LineKind) String() string {
	switch k {
	case LineDefine:
		return "define"
	case LineGuard:
		return "guard"
	case LineSection:
		return "section"
	default:
		return "verbatim"
	}
}

// Line is a classified configuration file line. Text always holds the raw
// line without its terminator. The remaining fields are filled according to
// Kind.
type Line struct {
	Kind LineKind
	Text string

	// LineDefine
	Indentation  string
	CommentedOut bool
	Comment      string
	Define       string
	Name         string
	Arguments    string
	Separator    string
	Value        string

	// LineGuard
	Guard string

	// LineSection
	Section string
}

// The alternatives are tried left to right, so a define wins over a guard
// and a guard over a section marker.
var lineRegexp = regexp.MustCompile(`^(?:` +
	`(?P<indentation>\s*)` +
	`(?P<comment>(?://\s*)?)` +
	`(?P<define>#\s*define\s+)` +
	`(?P<name>\w+)` +
	`(?P<arguments>(?:\((?:\w|\s|,)*\))?)` +
	`(?P<separator>\s*)` +
	`(?P<value>.*)` +
	`|#ifndef (?P<guard>\w+)` +
	`|\s*/?\*+\s*[\\@]name\s+SECTION:\s*(?P<section>.*)[ */]*` +
	`)`)

var (
	groupIndentation = lineRegexp.SubexpIndex("indentation")
	groupComment     = lineRegexp.SubexpIndex("comment")
	groupDefine      = lineRegexp.SubexpIndex("define")
	groupName        = lineRegexp.SubexpIndex("name")
	groupArguments   = lineRegexp.SubexpIndex("arguments")
	groupSeparator   = lineRegexp.SubexpIndex("separator")
	groupValue       = lineRegexp.SubexpIndex("value")
	groupGuard       = lineRegexp.SubexpIndex("guard")
	groupSection     = lineRegexp.SubexpIndex("section")
)

// ClassifyLine recognizes a single line. Trailing carriage returns and
// newlines are stripped first.
func ClassifyLine(raw string) Line {
	text := strings.TrimRight(raw, "\r\n")
	line := Line{Kind: LineVerbatim, Text: text}

	m := lineRegexp.FindStringSubmatchIndex(text)
	if m == nil {
		return line
	}
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}
	matched := func(i int) bool {
		return m[2*i] >= 0
	}

	switch {
	case matched(groupName):
		line.Kind = LineDefine
		line.Indentation = group(groupIndentation)
		line.Comment = group(groupComment)
		line.CommentedOut = line.Comment != ""
		line.Define = group(groupDefine)
		line.Name = group(groupName)
		line.Arguments = group(groupArguments)
		line.Separator = group(groupSeparator)
		line.Value = group(groupValue)
	case matched(groupGuard):
		line.Kind = LineGuard
		line.Guard = group(groupGuard)
	case matched(groupSection):
		line.Kind = LineSection
		line.Section = strings.TrimRight(group(groupSection), " */")
	}
	return line
}
