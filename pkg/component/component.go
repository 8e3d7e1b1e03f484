// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

// Package component parses Svelte-like component sources: optional <script> sections followed or
// preceded by markup where attribute values can be quoted strings or brace delimited expressions.
package component

import (
	"fmt"

	"github.com/tdewolff/parse/v2/js"
)

// Document is a parsed component file.
type Document struct {
	// Instance is the <script> section without context="module". Can be nil.
	Instance *Script
	// Module is the <script context="module"> section. Can be nil.
	Module *Script
	// Fragment is a synthetic root element holding all top level markup elements.
	Fragment *Element
}

// Script is a script section of a component.
type Script struct {
	// Start and End are offsets of script content (without tags) in the source.
	Start, End int
	Content    string
	AST        *js.AST
}

// Element is a markup element. Components (capitalized names) are elements too.
type Element struct {
	Name       string
	Start      int
	Attributes []*Attribute
	Children   []*Element
}

// ValueKind describes how attribute value was written.
type ValueKind int

const (
	// NoValue is a boolean attribute, e.g. <input disabled>.
	NoValue ValueKind = iota
	// QuotedValue is e.g. name="value" or name='value'.
	QuotedValue
	// UnquotedValue is e.g. name=value.
	UnquotedValue
	// ExpressionValue is e.g. name={expression}.
	ExpressionValue
	// ShorthandValue is e.g. {name}.
	ShorthandValue
	// SpreadValue is e.g. {...props}.
	SpreadValue
)

func (k ValueKind) String() string {
	switch k {
	case NoValue:
		return "none"
	case QuotedValue:
		return "quoted"
	case UnquotedValue:
		return "unquoted"
	case ExpressionValue:
		return "expression"
	case ShorthandValue:
		return "shorthand"
	case SpreadValue:
		return "spread"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Attribute is a single attribute of an element.
type Attribute struct {
	// Name as written in the source. Empty for spread attributes.
	Name string
	// Value is the raw value without quotes or braces.
	Value string
	Kind  ValueKind
	// Start and End are source offsets of the whole attribute (name and value).
	Start, End int

	// Expression is the parsed expression for ExpressionValue attributes. Can be nil for empty expressions.
	Expression js.IExpr
}

// Object returns attribute expression as object literal, if it is one.
func (a *Attribute) Object() (*js.ObjectExpr, bool) {
	if a.Expression == nil {
		return nil, false
	}
	o, ok := a.Expression.(*js.ObjectExpr)
	return o, ok
}

// Walk calls fn for every element in depth-first order, starting from e itself.
// Children are skipped when fn returns false.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// ParseError is returned when component source cannot be parsed.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse component at offset %d: %s", e.Offset, e.Msg)
}
