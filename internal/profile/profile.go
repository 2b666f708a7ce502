package profile

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/doridoridoriand/hdrconf/internal/config"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/tryfunc"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Profile is a named rule deciding which symbols are active.
type Profile struct {
	Name        string
	Description string
	rule        hcl.Expression
}

// Set holds the profiles of one file in definition order.
type Set struct {
	profiles []*Profile
}

type fileRoot struct {
	Profiles []*profileBlock `hcl:"profile,block"`
}

type profileBlock struct {
	Name        string         `hcl:"name,label"`
	Description string         `hcl:"description,optional"`
	Active      *hcl.Attribute `hcl:"active,attr"`
	DeclRange   hcl.Range      `hcl:",def_range"`
}

// Load reads and decodes a profile file.
func Load(fs afero.Fs, path string) (*Set, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	return Parse(src, path)
}

// Parse decodes profile definitions from src. filename is used in
// diagnostics only.
func Parse(src []byte, filename string) (*Set, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse profile file %s: %w", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode profile file %s: %w", filename, diags)
	}

	set := &Set{}
	seen := make(map[string]bool, len(root.Profiles))
	for _, block := range root.Profiles {
		if seen[block.Name] {
			return nil, fmt.Errorf("%s: duplicate profile %q", filename, block.Name)
		}
		seen[block.Name] = true
		if block.Active == nil {
			return nil, fmt.Errorf("%s: profile %q has no active attribute", block.DeclRange, block.Name)
		}
		set.profiles = append(set.profiles, &Profile{
			Name:        block.Name,
			Description: block.Description,
			rule:        block.Active.Expr,
		})
	}
	return set, nil
}

// Lookup returns the named profile.
func (s *Set) Lookup(name string) (*Profile, bool) {
	for _, p := range s.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Names returns the profile names sorted alphabetically.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Evaluate returns the desired active state of one symbol.
func (p *Profile) Evaluate(name string, active bool, section string) (bool, error) {
	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"name":    cty.StringVal(name),
			"active":  cty.BoolVal(active),
			"section": cty.StringVal(section),
		},
		Functions: functions,
	}
	val, diags := p.rule.Value(ctx)
	if diags.HasErrors() {
		return false, fmt.Errorf("profile %s: %w", p.Name, diags)
	}
	val, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("profile %s: active must be a bool: %w", p.Name, err)
	}
	if val.IsNull() || !val.IsKnown() {
		return false, fmt.Errorf("profile %s: active evaluated to null", p.Name)
	}
	return val.True(), nil
}

// Apply activates or deactivates every symbol of cfg according to the
// profile. Nothing changes if the rule fails for any symbol.
func (p *Profile) Apply(cfg *config.Config) error {
	return cfg.TryAdapt(p.Evaluate)
}

var functions = map[string]function.Function{
	"matches":  matchesFunc,
	"contains": stdlib.ContainsFunc,
	"upper":    stdlib.UpperFunc,
	"lower":    stdlib.LowerFunc,
	"can":      tryfunc.CanFunc,
	"try":      tryfunc.TryFunc,
}

// matchesFunc reports whether str contains a match for pattern.
var matchesFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "pattern", Type: cty.String},
		{Name: "str", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		re, err := regexp.Compile(args[0].AsString())
		if err != nil {
			return cty.UnknownVal(cty.Bool), function.NewArgErrorf(0, "invalid pattern: %s", err)
		}
		return cty.BoolVal(re.MatchString(args[1].AsString())), nil
	},
})
