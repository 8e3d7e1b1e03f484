// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package attrstrip

import (
	"strconv"

	"github.com/bwplotka/stripattrs/pkg/component"
	"github.com/tdewolff/parse/v2/js"
)

// Stats counts what was removed from the parsed component.
type Stats struct {
	// ScriptProperties is the number of object properties removed from the instance script.
	ScriptProperties int
	// Attributes is the number of markup attributes removed.
	Attributes int
	// ExpressionProperties is the number of object properties removed from attribute expressions.
	ExpressionProperties int
}

func (s Stats) total() int { return s.ScriptProperties + s.Attributes + s.ExpressionProperties }

// structural parses content and removes configured names from the tree.
func (s *Stripper) structural(content string) (Stats, error) {
	doc, err := component.Parse(content)
	if err != nil {
		return Stats{}, err
	}
	return s.StripDocument(doc), nil
}

// StripDocument removes configured names from the parsed component in place: object properties from the instance
// script, markup attributes and object properties from attribute expressions. Module script is left untouched.
func (s *Stripper) StripDocument(doc *component.Document) Stats {
	var stats Stats
	if doc.Instance != nil && doc.Instance.AST != nil {
		r := &propertyRemover{names: s.names}
		js.Walk(r, doc.Instance.AST)
		stats.ScriptProperties = r.removed
	}

	if doc.Fragment == nil {
		return stats
	}
	doc.Fragment.Walk(func(el *component.Element) bool {
		kept := el.Attributes[:0]
		for _, a := range el.Attributes {
			if a.Kind != component.SpreadValue {
				if _, ok := s.names[a.Name]; ok {
					stats.Attributes++
					continue
				}
			}
			if a.Expression != nil {
				r := &propertyRemover{names: s.names}
				js.Walk(r, a.Expression)
				stats.ExpressionProperties += r.removed
			}
			kept = append(kept, a)
		}
		el.Attributes = kept
		return true
	})
	return stats
}

// propertyRemover removes properties with configured keys from every object literal it visits.
type propertyRemover struct {
	names   map[string]struct{}
	removed int
}

func (r *propertyRemover) Enter(n js.INode) js.IVisitor {
	if o, ok := n.(*js.ObjectExpr); ok {
		r.removed += filterProperties(o, r.names)
	}
	return r
}

func (r *propertyRemover) Exit(js.INode) {}

// filterProperties removes properties with keys in names from o. Spread and computed properties are kept.
func filterProperties(o *js.ObjectExpr, names map[string]struct{}) int {
	kept := o.List[:0]
	removed := 0
	for _, p := range o.List {
		if key, ok := propertyKey(p); ok {
			if _, found := names[key]; found {
				removed++
				continue
			}
		}
		kept = append(kept, p)
	}
	o.List = kept
	return removed
}

// propertyKey returns the static key of the property, if it has one.
func propertyKey(p js.Property) (string, bool) {
	if p.Spread {
		return "", false
	}
	name := p.Name
	if name == nil {
		m, ok := p.Value.(*js.MethodDecl)
		if !ok || m.Name.Private != nil {
			return "", false
		}
		name = &m.Name.PropertyName
	}
	if name.IsComputed() {
		return "", false
	}

	data := string(name.Literal.Data)
	if name.Literal.TokenType == js.StringToken {
		if s, err := strconv.Unquote(data); err == nil {
			return s, true
		}
		if len(data) >= 2 {
			// Single quoted.
			return data[1 : len(data)-1], true
		}
	}
	return data, true
}
