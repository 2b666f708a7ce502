package config

import "strings"

// FirstFile routes known symbols to their owner and everything else to the
// first file.
type FirstFile struct{}

func (FirstFile) SelectFile(c *Config, name string) int {
	if setting, ok := c.settings[name]; ok {
		return setting.File
	}
	if len(c.files) == 0 {
		return -1
	}
	return 0
}

// Route sends unknown symbols starting with Prefix to file index File.
type Route struct {
	Prefix string
	File   int
}

// PrefixSelector routes known symbols to their owner and unknown symbols by
// the first matching route, falling back to the first file. It serves
// layouts where one header holds e.g. the PSA_ symbols and another the rest.
type PrefixSelector struct {
	Routes []Route
}

func (p PrefixSelector) SelectFile(c *Config, name string) int {
	if setting, ok := c.settings[name]; ok {
		return setting.File
	}
	for _, route := range p.Routes {
		if strings.HasPrefix(name, route.Prefix) && route.File < len(c.files) {
			return route.File
		}
	}
	return FirstFile{}.SelectFile(c, name)
}
