package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/afero"
)

// template is the stored form of one output line: either verbatim text or a
// reference to a setting plus the formatting around it.
type template struct {
	verbatim bool
	text     string

	name        string
	indentation string
	// comment is the marker that commented the line out when it was parsed.
	comment string
	// middle is "#define NAME(ARGS)" followed by the original separator.
	middle string
}

// ConfigFile is one configuration header: the line templates needed to
// regenerate it, its inclusion guard, and whether anything in it changed.
type ConfigFile struct {
	fs             afero.Fs
	role           string
	path           string
	templates      []template
	guard          string
	currentSection string
	modified       bool
}

// NewConfigFile locates a configuration file. When path is empty the first
// existing entry of candidates is used; when none exists a
// *FileNotFoundError naming role is returned. An explicit path is accepted
// as is; Parse reports it as a *FileNotFoundError if it does not exist.
func NewConfigFile(fs afero.Fs, role string, candidates []string, path string) (*ConfigFile, error) {
	if path == "" {
		for _, candidate := range candidates {
			if lexists(fs, candidate) {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil, &FileNotFoundError{Role: role, Candidates: append([]string(nil), candidates...)}
		}
	}
	return &ConfigFile{fs: fs, role: role, path: path}, nil
}

func lexists(fs afero.Fs, path string) bool {
	if lstater, ok := fs.(afero.Lstater); ok {
		_, _, err := lstater.LstatIfPossible(path)
		return err == nil
	}
	_, err := fs.Stat(path)
	return err == nil
}

// Path returns the file the configuration was read from.
func (cf *ConfigFile) Path() string {
	return cf.path
}

// Guard returns the inclusion guard symbol, or "" if none was found.
func (cf *ConfigFile) Guard() string {
	return cf.guard
}

// Modified reports whether any setting owned by this file changed since it
// was parsed. Once set it stays set.
func (cf *ConfigFile) Modified() bool {
	return cf.modified
}

// Parse reads the file and returns its settings in file order.
func (cf *ConfigFile) Parse() ([]Definition, error) {
	file, err := cf.fs.Open(cf.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &FileNotFoundError{Role: cf.role, Candidates: []string{cf.path}}
		}
		return nil, err
	}
	defer file.Close()

	defs, err := cf.parse(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cf.path, err)
	}
	return defs, nil
}

func (cf *ConfigFile) parse(r io.Reader) ([]Definition, error) {
	cf.templates = nil
	cf.guard = ""
	cf.currentSection = ""
	defer func() { cf.currentSection = "" }()

	var defs []Definition
	reader := bufio.NewReader(r)
	for {
		raw, err := reader.ReadString('\n')
		if raw != "" {
			if def, ok := cf.parseLine(raw); ok {
				defs = append(defs, def)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return defs, nil
}

func (cf *ConfigFile) parseLine(raw string) (Definition, bool) {
	line := ClassifyLine(raw)
	switch line.Kind {
	case LineSection:
		cf.currentSection = line.Section
		cf.templates = append(cf.templates, template{verbatim: true, text: line.Text})
		return Definition{}, false
	case LineGuard:
		if cf.guard == "" {
			cf.guard = line.Guard
		}
		cf.templates = append(cf.templates, template{verbatim: true, text: line.Text})
		return Definition{}, false
	case LineDefine:
		// The guard's own #define is structure, not an option.
		if cf.guard != "" && line.Name == cf.guard && line.Value == "" {
			cf.templates = append(cf.templates, template{verbatim: true, text: line.Text})
			return Definition{}, false
		}
		cf.templates = append(cf.templates, template{
			name:        line.Name,
			indentation: line.Indentation,
			comment:     line.Comment,
			middle:      line.Define + line.Name + line.Arguments + line.Separator,
		})
		return Definition{
			Active:  !line.CommentedOut,
			Name:    line.Name,
			Value:   line.Value,
			Section: cf.currentSection,
		}, true
	default:
		cf.templates = append(cf.templates, template{verbatim: true, text: line.Text})
		return Definition{}, false
	}
}

// Render writes the regenerated file content to w, taking the current value
// and state of each setting from settings.
func (cf *ConfigFile) Render(w io.Writer, settings map[string]*Setting) error {
	bw := bufio.NewWriter(w)
	for _, t := range cf.templates {
		line := t.text
		if !t.verbatim {
			setting, ok := settings[t.name]
			if !ok {
				return fmt.Errorf("%w: %s", ErrNotFound, t.name)
			}
			line = t.render(setting)
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// render formats one define line. An inactive line keeps the comment marker
// it was parsed with; a line that was active gets "//".
func (t template) render(setting *Setting) string {
	middle := t.middle
	if setting.Value != "" {
		if !strings.HasSuffix(middle, " ") && !strings.HasSuffix(middle, "\t") {
			middle += " "
		}
	} else {
		middle = strings.TrimRightFunc(middle, unicode.IsSpace)
	}
	comment := ""
	if !setting.Active {
		comment = t.comment
		if comment == "" {
			comment = "//"
		}
	}
	return strings.TrimRightFunc(t.indentation+comment+middle+setting.Value, unicode.IsSpace)
}

// Write regenerates the file at target, or at the file's own path when
// target is empty. Nothing is written when the file is unmodified and target
// is its own path. It reports whether the file was written.
func (cf *ConfigFile) Write(settings map[string]*Setting, target string) (written bool, err error) {
	if target == "" {
		target = cf.path
	}
	if !cf.modified && target == cf.path {
		return false, nil
	}

	file, err := cf.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return false, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := cf.Render(file, settings); err != nil {
		return false, fmt.Errorf("write %s: %w", target, err)
	}
	return true, nil
}
