// Package policy holds the one table that decides which role may open which
// page, call which API scope, and see which menu entries.
package policy

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"estate-dashboard/internal/model"
)

//go:embed policy.yaml
var builtin []byte

type Table struct {
	Home     string                     `yaml:"home" validate:"required,startswith=/"`
	SignIn   string                     `yaml:"signin" validate:"required,startswith=/"`
	Public   []string                   `yaml:"public" validate:"dive,startswith=/"`
	Roles    map[model.Role]*RolePolicy `yaml:"roles" validate:"required,min=1,dive,required"`
	Fallback model.Role                 `yaml:"fallback" validate:"required"`
	Entries  []MenuEntry                `yaml:"menu" validate:"dive"`

	public []pattern
}

type RolePolicy struct {
	Default string            `yaml:"default" validate:"required,startswith=/"`
	Landing map[string]string `yaml:"landing"`
	Routes  []string          `yaml:"routes" validate:"required,dive,startswith=/"`
	Scopes  []string          `yaml:"scopes"`

	routes []pattern
	scopes map[string]bool
}

type MenuEntry struct {
	Name  string       `yaml:"name" validate:"required"`
	Icon  string       `yaml:"icon"`
	Path  string       `yaml:"path" validate:"required_without=Items"`
	Roles []model.Role `yaml:"roles"`
	Items []MenuEntry  `yaml:"items" validate:"dive"`
}

// Load returns the built-in table.
func Load() (*Table, error) {
	return Parse(builtin)
}

func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("policy: unmarshal: %w", err)
	}
	if err := validator.New().Struct(&t); err != nil {
		return nil, fmt.Errorf("policy: validation failed: %w", err)
	}
	t.compile()
	if err := t.check(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	return &t, nil
}

func (t *Table) compile() {
	t.public = compileAll(t.Public)
	for _, rp := range t.Roles {
		rp.routes = compileAll(rp.Routes)
		rp.scopes = make(map[string]bool, len(rp.Scopes))
		for _, s := range rp.Scopes {
			rp.scopes[s] = true
		}
	}
}

// check catches tables that would send a role somewhere it cannot go.
func (t *Table) check() error {
	if _, ok := t.Roles[t.Fallback]; !ok {
		return fmt.Errorf("fallback role %q not defined", t.Fallback)
	}
	if !t.IsPublic(t.SignIn) || !t.IsPublic(t.Home) {
		return fmt.Errorf("signin and home must be public")
	}
	for name, rp := range t.Roles {
		if !rp.allows(rp.Default) {
			return fmt.Errorf("role %s: default route %s not allowed", name, rp.Default)
		}
		for from, to := range rp.Landing {
			if !rp.allows(to) {
				return fmt.Errorf("role %s: landing %s -> %s not allowed", name, from, to)
			}
		}
	}
	var walk func(e MenuEntry, roles []model.Role) error
	walk = func(e MenuEntry, roles []model.Role) error {
		for _, r := range roles {
			rp, ok := t.Roles[r]
			if !ok {
				return fmt.Errorf("menu %s: unknown role %s", e.Name, r)
			}
			if e.Path != "" && !rp.allows(e.Path) && !t.IsPublic(e.Path) {
				return fmt.Errorf("menu %s: %s not allowed for %s", e.Name, e.Path, r)
			}
		}
		for _, sub := range e.Items {
			if err := walk(sub, roles); err != nil {
				return err
			}
		}
		return nil
	}
	for _, e := range t.Entries {
		if err := walk(e, e.Roles); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) IsPublic(path string) bool {
	return matchAny(t.public, path)
}

// Known reports whether path is a page route at all.
func (t *Table) Known(path string) bool {
	if t.IsPublic(path) {
		return true
	}
	for _, rp := range t.Roles {
		if rp.allows(path) {
			return true
		}
	}
	return false
}

func (t *Table) Allows(role model.Role, path string) bool {
	rp, ok := t.Roles[role]
	return ok && rp.allows(path)
}

func (t *Table) Permits(role model.Role, scope string) bool {
	rp, ok := t.Roles[role]
	return ok && rp.scopes[scope]
}

// Patterns lists every page route once, public routes first.
func (t *Table) Patterns() []string {
	out := slices.Clone(t.Public)
	names := make([]string, 0, len(t.Roles))
	for r := range t.Roles {
		names = append(names, string(r))
	}
	slices.Sort(names)
	for _, n := range names {
		for _, p := range t.Roles[model.Role(n)].Routes {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

func (rp *RolePolicy) allows(path string) bool {
	return matchAny(rp.routes, path)
}

// pattern is a route split on "/", where ":name" segments match anything.
type pattern []string

func compileAll(ps []string) []pattern {
	out := make([]pattern, len(ps))
	for i, p := range ps {
		out[i] = split(p)
	}
	return out
}

func split(path string) pattern {
	path = strings.Trim(path, "/")
	if path == "" {
		return pattern{}
	}
	return strings.Split(path, "/")
}

func (p pattern) match(path string) bool {
	segs := split(path)
	if len(segs) != len(p) {
		return false
	}
	for i, s := range p {
		if strings.HasPrefix(s, ":") {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if s != segs[i] {
			return false
		}
	}
	return true
}

func matchAny(ps []pattern, path string) bool {
	for _, p := range ps {
		if p.match(path) {
			return true
		}
	}
	return false
}
