package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/doridoridoriand/hdrconf/internal/log"
)

// OptionalLevel records a log level flag and whether it was set.
type OptionalLevel struct {
	value log.Level
	set   bool
}

func (o *OptionalLevel) Set(s string) error {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q (valid values: debug, info, warn, error)", s)
	}
	o.value = log.ParseLevel(strings.ToLower(s))
	o.set = true
	return nil
}

func (o *OptionalLevel) String() string {
	if !o.set {
		return ""
	}
	return strings.ToLower(o.value.String())
}

func (o *OptionalLevel) Value() (log.Level, bool) {
	return o.value, o.set
}

// OptionalString records a string flag and whether it was set.
type OptionalString struct {
	value string
	set   bool
}

func (o *OptionalString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

func (o *OptionalString) String() string {
	if !o.set {
		return ""
	}
	return o.value
}

func (o *OptionalString) Value() (string, bool) {
	return o.value, o.set
}

// OptionalBool records a bool flag and whether it was set.
type OptionalBool struct {
	value bool
	set   bool
}

func (o *OptionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalBool) String() string {
	if !o.set {
		return ""
	}
	if o.value {
		return "true"
	}
	return "false"
}

func (o *OptionalBool) IsBoolFlag() bool {
	return true
}

func (o *OptionalBool) Value() (bool, bool) {
	return o.value, o.set
}
