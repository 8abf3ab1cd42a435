// internal/conditions/registry.go
package conditions

import (
	"fmt"
	"slices"

	"github.com/solatis/conditions/internal/types"
)

/*
 * Definitions registry.
 *
 * Definitions maps group name -> condstr -> Type. It is supplied by the embedding
 * application and passed explicitly to every decode; this package keeps no registry
 * of its own. Lookups are case-sensitive. The core only reads a Definitions value,
 * so one instance can serve concurrent decodes as long as the caller does not
 * mutate it meanwhile.
 *
 * Describe produces the introspection listing adapters render as help, sorted by
 * group name and then condstr.
 */

// Definitions is the vocabulary available at a use site.
type Definitions map[string]map[string]Type

// Lookup returns the type registered for group/condstr.
func (d Definitions) Lookup(group, condstr string) (Type, error) {
	conds, ok := d[group]
	if !ok {
		return nil, &types.InvalidConditionError{
			Group:   group,
			Condstr: condstr,
			Field:   "group",
			Err:     types.ErrUnknownGroup,
			Detail:  fmt.Sprintf("group %q is not defined", group),
		}
	}
	t, ok := conds[condstr]
	if !ok || t == nil {
		return nil, &types.InvalidConditionError{
			Group:   group,
			Condstr: condstr,
			Field:   "condstr",
			Err:     types.ErrUnknownCondition,
			Detail:  fmt.Sprintf("condition %q is not defined in group %q", condstr, group),
		}
	}
	return t, nil
}

// Validate checks that every registered type is usable: non-nil, and compare types
// declare at least one operator.
func (d Definitions) Validate() error {
	for _, group := range d.Groups() {
		if group == "" {
			return fmt.Errorf("empty group name")
		}
		for _, condstr := range d.Condstrs(group) {
			t := d[group][condstr]
			if condstr == "" {
				return fmt.Errorf("group %q: empty condstr", group)
			}
			if t == nil {
				return fmt.Errorf("%s/%s: nil condition type", group, condstr)
			}
			if ct, ok := t.(CompareType); ok && len(ct.Operators()) == 0 {
				return fmt.Errorf("%s/%s: %w", group, condstr, types.ErrNoOperators)
			}
		}
	}
	return nil
}

// Groups returns the group names in sorted order.
func (d Definitions) Groups() []string {
	groups := make([]string, 0, len(d))
	for g := range d {
		groups = append(groups, g)
	}
	slices.Sort(groups)
	return groups
}

// Condstrs returns the condstrs of group in sorted order.
func (d Definitions) Condstrs(group string) []string {
	conds := d[group]
	names := make([]string, 0, len(conds))
	for c := range conds {
		names = append(names, c)
	}
	slices.Sort(names)
	return names
}

// GroupDescription lists the conditions of one group.
type GroupDescription struct {
	Groupname  string                 `json:"groupname"`
	Conditions []ConditionDescription `json:"conditions"`
}

// ConditionDescription is the introspection surface of one registered type.
type ConditionDescription struct {
	Condstr          string   `json:"condstr"`
	KeyRequired      bool     `json:"key_required"`
	KeysAllowed      []string `json:"keys_allowed"`
	KeyExample       string   `json:"key_example"`
	OperatorRequired bool     `json:"operator_required"`
	Operators        []string `json:"operators"`
	OperandExample   any      `json:"operand_example"`
	HelpText         string   `json:"help_text"`
	Description      string   `json:"description"`
}

// Describe returns the registry introspection, sorted by group then condstr.
func (d Definitions) Describe() []GroupDescription {
	out := make([]GroupDescription, 0, len(d))
	for _, group := range d.Groups() {
		gd := GroupDescription{Groupname: group}
		for _, condstr := range d.Condstrs(group) {
			t := d[group][condstr]
			if t == nil {
				continue
			}
			gd.Conditions = append(gd.Conditions, DescribeType(condstr, t))
		}
		out = append(out, gd)
	}
	return out
}

// DescribeType returns the introspection record of a single type.
func DescribeType(condstr string, t Type) ConditionDescription {
	desc := ConditionDescription{
		Condstr:     condstr,
		KeyRequired: t.KeyRequired(),
		KeysAllowed: t.KeysAllowed(),
		KeyExample:  t.KeyExample(),
		Operators:   []string{},
		HelpText:    t.HelpText(),
		Description: t.FullDescription(),
	}
	if ct, ok := t.(CompareType); ok {
		desc.OperatorRequired = true
		desc.Operators = OperatorNames(ct)
		desc.OperandExample = ct.OperandExample()
	}
	return desc
}

// DefinitionConfig declares one registry entry by built-in kind name.
type DefinitionConfig struct {
	Kind string   `json:"kind" yaml:"kind"`
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty"`
}

// DefinitionsConfig declares a registry: group -> condstr -> entry.
type DefinitionsConfig map[string]map[string]DefinitionConfig

// BuildDefinitions resolves a declarative registry against a catalog of kinds
// (usually Builtins()). Keys, when given, restrict the entry via Restrict.
func BuildDefinitions(cfg DefinitionsConfig, catalog map[string]Type) (Definitions, error) {
	defs := make(Definitions, len(cfg))
	for group, entries := range cfg {
		defs[group] = make(map[string]Type, len(entries))
		for condstr, entry := range entries {
			t, ok := catalog[entry.Kind]
			if !ok {
				return nil, fmt.Errorf("%s/%s: unknown kind %q", group, condstr, entry.Kind)
			}
			if len(entry.Keys) > 0 {
				t = Restrict(t, entry.Keys...)
			}
			defs[group][condstr] = t
		}
	}
	if err := defs.Validate(); err != nil {
		return nil, err
	}
	return defs, nil
}

// BuiltinDefinitions registers every built-in kind under group "builtin" with the
// kind name as condstr.
func BuiltinDefinitions() Definitions {
	return Definitions{"builtin": Builtins()}
}
