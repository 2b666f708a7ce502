package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Config is the symbol table built from one or more configuration files.
//
// A symbol is active if it has a #define that is not commented out, and
// known if it has a #define at all. Config is not safe for concurrent use.
type Config struct {
	settings map[string]*Setting
	order    []string
	files    []*ConfigFile
	selector FileSelector
}

// Option configures a Config.
type Option func(*Config)

// WithSelector replaces the FirstFile routing policy.
func WithSelector(selector FileSelector) Option {
	return func(c *Config) {
		c.selector = selector
	}
}

// New returns an empty Config.
func New(opts ...Option) *Config {
	c := &Config{
		settings: make(map[string]*Setting),
		selector: FirstFile{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load parses every file in order into a new Config.
func Load(files []*ConfigFile, opts ...Option) (*Config, error) {
	c := New(opts...)
	for _, cf := range files {
		if err := c.AddFile(cf); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddFile parses cf and adds its settings. A name already defined by an
// earlier file is replaced by the new definition.
func (c *Config) AddFile(cf *ConfigFile) error {
	defs, err := cf.Parse()
	if err != nil {
		return err
	}
	index := len(c.files)
	c.files = append(c.files, cf)
	for _, def := range defs {
		c.put(&Setting{
			Name:    def.Name,
			Value:   def.Value,
			Active:  def.Active,
			Section: def.Section,
			File:    index,
		})
	}
	return nil
}

func (c *Config) put(setting *Setting) {
	if _, ok := c.settings[setting.Name]; !ok {
		c.order = append(c.order, setting.Name)
	}
	c.settings[setting.Name] = setting
}

// Files returns the owned files in load order.
func (c *Config) Files() []*ConfigFile {
	return append([]*ConfigFile(nil), c.files...)
}

// Settings returns a copy of every known setting in definition order.
func (c *Config) Settings() []Setting {
	result := make([]Setting, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, *c.settings[name])
	}
	return result
}

// Setting returns a copy of the named setting.
func (c *Config) Setting(name string) (Setting, bool) {
	setting, ok := c.settings[name]
	if !ok {
		return Setting{}, false
	}
	return *setting, true
}

// Contains reports whether name is active.
func (c *Config) Contains(name string) bool {
	setting, ok := c.settings[name]
	return ok && setting.Active
}

// All reports whether every name is active.
func (c *Config) All(names ...string) bool {
	for _, name := range names {
		if !c.Contains(name) {
			return false
		}
	}
	return true
}

// Any reports whether at least one name is active.
func (c *Config) Any(names ...string) bool {
	for _, name := range names {
		if c.Contains(name) {
			return true
		}
	}
	return false
}

// Known reports whether a #define for name exists, commented out or not.
func (c *Config) Known(name string) bool {
	_, ok := c.settings[name]
	return ok
}

// Get returns the value of an active symbol. Inactive and unknown symbols
// both yield ErrNotFound.
func (c *Config) Get(name string) (string, error) {
	if !c.Contains(name) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c.settings[name].Value, nil
}

// GetOrDefault returns the value of name if it is active, def otherwise.
func (c *Config) GetOrDefault(name, def string) string {
	if !c.Contains(name) {
		return def
	}
	return c.settings[name].Value
}

// SetValue changes the value of a known symbol without changing whether it
// is active.
func (c *Config) SetValue(name, value string) error {
	setting, ok := c.settings[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if setting.Value != value {
		setting.Value = value
		c.markModified(setting)
	}
	return nil
}

// Set activates name, keeping its current value. An unknown name is added
// to the file chosen by the selector; no line exists for it there, so it
// is not written out.
func (c *Config) Set(name string) error {
	return c.set(name, nil)
}

// SetWithValue activates name and sets its value. Unknown names are handled
// as in Set.
func (c *Config) SetWithValue(name, value string) error {
	return c.set(name, &value)
}

func (c *Config) set(name string, value *string) error {
	if setting, ok := c.settings[name]; ok {
		changed := !setting.Active
		if value != nil && setting.Value != *value {
			setting.Value = *value
			changed = true
		}
		setting.Active = true
		if changed {
			c.markModified(setting)
		}
		return nil
	}

	index := c.selector.SelectFile(c, name)
	if index < 0 || index >= len(c.files) {
		return fmt.Errorf("%w: cannot add %s", ErrNoFiles, name)
	}
	setting := &Setting{Name: name, Active: true, File: index}
	if value != nil {
		setting.Value = *value
	}
	c.put(setting)
	c.markModified(setting)
	return nil
}

// Unset deactivates name. Unknown names are ignored.
func (c *Config) Unset(name string) {
	setting, ok := c.settings[name]
	if !ok {
		return
	}
	if setting.Active {
		setting.Active = false
		c.markModified(setting)
	}
}

// Adapt sets the active state of every known symbol, in definition order,
// to what adapter returns for it.
func (c *Config) Adapt(adapter Adapter) {
	for _, name := range c.order {
		setting := c.settings[name]
		active := adapter(setting.Name, setting.Active, setting.Section)
		if active != setting.Active {
			setting.Active = active
			c.markModified(setting)
		}
	}
}

// TryAdapt is Adapt for adapters that can fail. Every setting is evaluated
// before any is changed, so an error leaves the Config untouched.
func (c *Config) TryAdapt(adapter func(name string, active bool, section string) (bool, error)) error {
	results := make(map[string]bool, len(c.order))
	for _, name := range c.order {
		setting := c.settings[name]
		active, err := adapter(setting.Name, setting.Active, setting.Section)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		results[name] = active
	}
	c.Adapt(func(name string, _ bool, _ string) bool {
		return results[name]
	})
	return nil
}

// ChangeMatching sets the active state of every symbol whose name contains
// a match for one of patterns. An empty pattern list changes nothing.
func (c *Config) ChangeMatching(patterns []string, enable bool) error {
	if len(patterns) == 0 {
		return nil
	}
	re, err := regexp.Compile(strings.Join(patterns, "|"))
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	for _, name := range c.order {
		setting := c.settings[name]
		if !re.MatchString(name) {
			continue
		}
		if setting.Active != enable {
			setting.Active = enable
			c.markModified(setting)
		}
	}
	return nil
}

// Write writes every file that needs it. A non-empty target replaces each
// file's own path. It returns the paths written.
func (c *Config) Write(target string) ([]string, error) {
	targets := make([]string, len(c.files))
	for i := range targets {
		targets[i] = target
	}
	return c.WriteFiles(targets)
}

// WriteFiles is like Write with one target per file; targets[i] applies to
// Files()[i] and an empty or missing entry means the file's own path.
func (c *Config) WriteFiles(targets []string) ([]string, error) {
	var written []string
	for i, cf := range c.files {
		target := ""
		if i < len(targets) {
			target = targets[i]
		}
		ok, err := cf.Write(c.settings, target)
		if err != nil {
			return written, err
		}
		if ok {
			if target == "" {
				target = cf.Path()
			}
			written = append(written, target)
		}
	}
	return written, nil
}

// Filename returns the path of the file that owns name, or of the file an
// unknown name would be added to. It returns "" when no file is loaded.
func (c *Config) Filename(name string) string {
	index := c.selector.SelectFile(c, name)
	if index < 0 || index >= len(c.files) {
		return ""
	}
	return c.files[index].Path()
}

func (c *Config) markModified(setting *Setting) {
	if setting.File >= 0 && setting.File < len(c.files) {
		c.files[setting.File].modified = true
	}
}
