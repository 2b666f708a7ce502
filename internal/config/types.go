package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a symbol is not known, or not active where an
// active symbol is required.
var ErrNotFound = errors.New("symbol not found")

// ErrFileNotFound is returned when no configuration file exists at any of
// the candidate paths.
var ErrFileNotFound = errors.New("configuration file not found")

// ErrNoFiles is returned when a symbol must be routed to a file but the
// Config owns no files.
var ErrNoFiles = errors.New("no configuration files loaded")

// FileNotFoundError names the file role and the paths that were tried.
type FileNotFoundError struct {
	Role       string
	Candidates []string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("%s configuration file not found: %s", e.Role, strings.Join(e.Candidates, ", "))
}

func (e *FileNotFoundError) Unwrap() error {
	return ErrFileNotFound
}

// Setting is the value record for one macro symbol.
type Setting struct {
	Name  string
	Value string
	// Active is true for a live #define and false for a commented-out one.
	Active bool
	// Section is the last section marker seen before the definition, or ""
	// when the definition precedes every marker.
	Section string
	// File is the index of the owning file in Config.Files().
	File int
}

// Definition is one setting as found by ConfigFile.Parse.
type Definition struct {
	Active  bool
	Name    string
	Value   string
	Section string
}

// Adapter returns the desired active state of a known symbol. It is called
// once per setting by Config.Adapt and must not modify the Config.
type Adapter func(name string, active bool, section string) bool

// FileSelector picks the file that owns a symbol. It returns an index into
// c.Files(), or -1 when no file can own the symbol.
type FileSelector interface {
	SelectFile(c *Config, name string) int
}
