// Package schema embeds the canonical page schema and validates candidate
// documents against it.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alexanderramin/aicanvas/internal/page"
)

// ID is the $id of the page schema.
const ID = "https://github.com/alexanderramin/aicanvas/page.schema.json"

//go:embed page.schema.json
var pageSchema []byte

// JSON returns the page schema document. The returned slice must not be
// modified.
func JSON() []byte {
	return pageSchema
}

// Requirement lists the keys a component of one type must or must not carry.
type Requirement struct {
	Type page.Type
	// Keys are required component keys besides "type".
	Keys []string
	// ConfigKeys are required keys inside config.
	ConfigKeys []string
	// Forbidden are component keys the type may not carry.
	Forbidden []string
}

var (
	requirementsOnce sync.Once
	requirements     []Requirement
	requirementsErr  error
)

// Requirements derives the per-type rules from the conditional branches of
// the Component definition, in page.Types() order.
func Requirements() []Requirement {
	requirementsOnce.Do(func() {
		requirements, requirementsErr = deriveRequirements(pageSchema)
	})
	if requirementsErr != nil {
		panic(fmt.Sprintf("schema: deriving requirements: %v", requirementsErr))
	}
	return requirements
}

// RequirementFor returns the rules for one component type.
func RequirementFor(t page.Type) (Requirement, bool) {
	for _, r := range Requirements() {
		if r.Type == t {
			return r, true
		}
	}
	return Requirement{}, false
}

type node = map[string]any

type schemaDoc struct {
	Defs map[string]node `json:"$defs"`
}

func deriveRequirements(data []byte) ([]Requirement, error) {
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	component, ok := doc.Defs["Component"]
	if !ok {
		return nil, fmt.Errorf("missing $defs/Component")
	}
	rules, _ := component["allOf"].([]any)

	byType := make(map[page.Type]*Requirement)
	for _, t := range page.Types() {
		byType[t] = &Requirement{Type: t}
	}

	for i, raw := range rules {
		rule, _ := raw.(node)
		t, ok := conditionType(rule)
		if !ok {
			return nil, fmt.Errorf("allOf[%d]: condition is not a type const", i)
		}
		req, ok := byType[t]
		if !ok {
			return nil, fmt.Errorf("allOf[%d]: unknown type %q", i, t)
		}
		if then, ok := rule["then"].(node); ok {
			req.Keys = append(req.Keys, stringList(then["required"])...)
			if config := resolve(doc.Defs, property(then, "config")); config != nil {
				req.ConfigKeys = append(req.ConfigKeys, stringList(config["required"])...)
			}
		}
		if alt, ok := rule["else"].(node); ok {
			props, _ := alt["properties"].(node)
			for key, v := range props {
				if b, ok := v.(bool); ok && !b {
					for other, r := range byType {
						if other != t {
							r.Forbidden = append(r.Forbidden, key)
						}
					}
				}
			}
		}
	}

	out := make([]Requirement, 0, len(byType))
	for _, t := range page.Types() {
		r := byType[t]
		sort.Strings(r.Forbidden)
		out = append(out, *r)
	}
	return out, nil
}

func conditionType(rule node) (page.Type, bool) {
	cond, _ := rule["if"].(node)
	typ := property(cond, "type")
	if typ == nil {
		return "", false
	}
	c, ok := typ["const"].(string)
	return page.Type(c), ok
}

func property(n node, key string) node {
	if n == nil {
		return nil
	}
	props, _ := n["properties"].(node)
	p, _ := props[key].(node)
	return p
}

func resolve(defs map[string]node, n node) node {
	if n == nil {
		return nil
	}
	ref, ok := n["$ref"].(string)
	if !ok {
		return n
	}
	name, found := strings.CutPrefix(ref, "#/$defs/")
	if !found {
		return nil
	}
	return defs[name]
}

func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
