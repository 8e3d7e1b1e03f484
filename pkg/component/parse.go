// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package component

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/html"
	"github.com/tdewolff/parse/v2/js"
)

// braces make the HTML lexer treat {...} blocks and attribute values as opaque templates.
var braces = [2]string{"{", "}"}

var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {}, "img": {},
	"input": {}, "link": {}, "meta": {}, "param": {}, "source": {}, "track": {}, "wbr": {},
}

type parser struct {
	src string
	in  *parse.Input
	l   *html.Lexer

	doc     *Document
	stack   []*Element
	pending *Element
	// script is the script section we are reading, until its end tag.
	script *Script
	// skipUntil is set when attribute expression is longer than what the lexer delimited (e.g. nested braces).
	// Tokens starting before this offset are part of that expression.
	skipUntil int
}

// Parse parses given component source. It returns *ParseError if markup is not well-formed or
// any script section or attribute expression is not valid JavaScript.
func Parse(src string) (*Document, error) {
	in := parse.NewInputString(src)
	p := &parser{
		src: src,
		in:  in,
		l:   html.NewTemplateLexer(in, braces),
		doc: &Document{Fragment: &Element{}},
	}
	p.stack = []*Element{p.doc.Fragment}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

func (p *parser) top() *Element { return p.stack[len(p.stack)-1] }

func (p *parser) parse() error {
	for {
		tt, data := p.l.Next()
		end := p.in.Offset()
		start := end - len(data)

		if tt != html.ErrorToken && start < p.skipUntil {
			switch tt {
			case html.StartTagCloseToken, html.StartTagVoidToken:
				// Lexer thinks tag ended inside an expression. Best effort: end it here.
				if err := p.closeTag(tt == html.StartTagVoidToken); err != nil {
					return err
				}
			}
			continue
		}

		switch tt {
		case html.ErrorToken:
			if err := p.l.Err(); err != nil && err != io.EOF {
				return &ParseError{Offset: end, Msg: err.Error()}
			}
			return p.finish()
		case html.StartTagToken:
			p.pending = &Element{Name: p.src[start+1 : end], Start: start}
		case html.AttributeToken:
			if p.pending == nil {
				continue
			}
			a, err := p.attribute(start, end)
			if err != nil {
				return err
			}
			p.pending.Attributes = append(p.pending.Attributes, a)
		case html.StartTagCloseToken, html.StartTagVoidToken:
			if err := p.closeTag(tt == html.StartTagVoidToken); err != nil {
				return err
			}
		case html.EndTagToken:
			if err := p.endTag(start, end); err != nil {
				return err
			}
		case html.TextToken:
			if p.script != nil && p.script.Start < 0 {
				p.script.Start, p.script.End = start, end
				p.script.Content = p.src[start:end]
			}
		case html.SVGToken, html.MathToken, html.XMLToken:
			// Lexed as a whole, children included.
			p.top().Children = append(p.top().Children, &Element{Name: tagName(p.src[start:end]), Start: start})
		}
	}
}

func (p *parser) closeTag(selfClosing bool) error {
	el := p.pending
	p.pending = nil
	if el == nil {
		return nil
	}

	if strings.EqualFold(el.Name, "script") {
		s := &Script{Start: -1}
		if isModuleScript(el) {
			if p.doc.Module != nil {
				return &ParseError{Offset: el.Start, Msg: "a component can only have one <script context=\"module\"> element"}
			}
			p.doc.Module = s
		} else {
			if p.doc.Instance != nil {
				return &ParseError{Offset: el.Start, Msg: "a component can only have one instance-level <script> element"}
			}
			p.doc.Instance = s
		}
		if selfClosing {
			s.Start, s.End = el.Start, el.Start
			return nil
		}
		p.script = s
		p.stack = append(p.stack, el)
		return nil
	}

	parent := p.top()
	parent.Children = append(parent.Children, el)
	if _, ok := voidElements[el.Name]; ok || selfClosing {
		return nil
	}
	p.stack = append(p.stack, el)
	return nil
}

func (p *parser) endTag(start, end int) error {
	name := strings.TrimSpace(strings.TrimSuffix(p.src[start+2:end], ">"))
	if _, ok := voidElements[name]; ok {
		return nil
	}
	if len(p.stack) == 1 {
		return &ParseError{Offset: start, Msg: fmt.Sprintf("</%s> attempted to close an element that was not open", name)}
	}

	top := p.top()
	if !strings.EqualFold(top.Name, name) {
		return &ParseError{Offset: start, Msg: fmt.Sprintf("</%s> attempted to close an element that was not open, <%s> is still open", name, top.Name)}
	}
	p.stack = p.stack[:len(p.stack)-1]

	if s := p.script; s != nil && strings.EqualFold(name, "script") {
		p.script = nil
		if s.Start < 0 {
			s.Start, s.End = start, start
		}
		ast, err := js.Parse(parse.NewInputString(s.Content), js.Options{})
		if err != nil {
			return &ParseError{Offset: s.Start, Msg: errors.Wrap(err, "script").Error()}
		}
		s.AST = ast
	}
	return nil
}

func (p *parser) finish() error {
	if p.pending != nil {
		return &ParseError{Offset: p.pending.Start, Msg: fmt.Sprintf("<%s> tag was not closed", p.pending.Name)}
	}
	if len(p.stack) > 1 {
		top := p.top()
		return &ParseError{Offset: top.Start, Msg: fmt.Sprintf("<%s> was left open", top.Name)}
	}
	return nil
}

func (p *parser) attribute(start, end int) (*Attribute, error) {
	off := start
	for off < end && isSpace(p.src[off]) {
		off++
	}
	a := &Attribute{Start: off, End: end}
	raw := p.src[off:end]

	if strings.HasPrefix(raw, "{") {
		closing, ok := MatchBrace(p.src, off)
		if !ok {
			return nil, &ParseError{Offset: off, Msg: "unclosed attribute expression"}
		}
		p.extend(closing)
		a.End = closing

		inner := strings.TrimSpace(p.src[off+1 : closing-1])
		if strings.HasPrefix(inner, "...") {
			a.Kind = SpreadValue
			a.Value = strings.TrimPrefix(inner, "...")
			return a, nil
		}
		a.Kind = ShorthandValue
		a.Name, a.Value = inner, inner
		return a, nil
	}

	eq := strings.IndexByte(raw, '=')
	if eq < 0 {
		a.Name = strings.TrimSpace(raw)
		a.Kind = NoValue
		return a, nil
	}
	a.Name = strings.TrimRight(raw[:eq], " \t\n\r\f")

	vs := off + eq + 1
	for vs < end && isSpace(p.src[vs]) {
		vs++
	}
	if vs >= end {
		a.Kind = UnquotedValue
		return a, nil
	}

	switch c := p.src[vs]; c {
	case '"', '\'':
		a.Kind = QuotedValue
		a.Value = strings.TrimSuffix(p.src[vs+1:end], string(c))
	case '{':
		closing, ok := MatchBrace(p.src, vs)
		if !ok {
			return nil, &ParseError{Offset: vs, Msg: fmt.Sprintf("unclosed expression in attribute %q", a.Name)}
		}
		p.extend(closing)
		a.End = closing
		a.Kind = ExpressionValue
		a.Value = p.src[vs+1 : closing-1]

		expr, err := parseExpression(a.Value)
		if err != nil {
			return nil, &ParseError{Offset: vs, Msg: fmt.Sprintf("attribute %q: %v", a.Name, err)}
		}
		a.Expression = expr
	default:
		a.Kind = UnquotedValue
		a.Value = p.src[vs:end]
	}
	return a, nil
}

func (p *parser) extend(offset int) {
	if offset > p.skipUntil {
		p.skipUntil = offset
	}
}

// parseExpression parses single JavaScript expression, e.g. the content of an attribute value in braces.
func parseExpression(s string) (js.IExpr, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	// Parenthesis make object literals parse as expressions, not blocks.
	ast, err := js.Parse(parse.NewInputString("("+s+"\n)"), js.Options{})
	if err != nil {
		return nil, err
	}
	var stmts []js.IStmt
	for _, s := range ast.BlockStmt.List {
		if _, ok := s.(*js.Comment); !ok {
			stmts = append(stmts, s)
		}
	}
	if len(stmts) != 1 {
		return nil, errors.Errorf("expected single expression, got %d statements", len(stmts))
	}
	stmt, ok := stmts[0].(*js.ExprStmt)
	if !ok {
		return nil, errors.Errorf("expected expression, got %v", stmts[0])
	}
	if g, ok := stmt.Value.(*js.GroupExpr); ok {
		return g.X, nil
	}
	return stmt.Value, nil
}

func isModuleScript(el *Element) bool {
	for _, a := range el.Attributes {
		if a.Name == "context" && a.Value == "module" {
			return true
		}
	}
	return false
}

func tagName(tag string) string {
	name := strings.TrimPrefix(tag, "<")
	if i := strings.IndexAny(name, " \t\n\r\f/>"); i >= 0 {
		name = name[:i]
	}
	return name
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
