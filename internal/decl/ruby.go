package decl

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
)

// rubyParser maps classes and modules to types. Modules nest their
// classes as nested types.
type rubyParser struct {
	treeSitterParser
}

// NewRubyParser creates a new Ruby parser.
func NewRubyParser() Parser {
	lang := sitter.NewLanguage(ruby.Language())
	return &rubyParser{treeSitterParser: newTreeSitterParser(lang, "ruby", ".rb")}
}

// Parse extracts the declarations of a Ruby file.
func (p *rubyParser) Parse(ctx context.Context, file string, source []byte) ([]*Unit, error) {
	unit := &Unit{File: file}
	err := p.parse(ctx, file, source, func(root *sitter.Node) {
		p.declareBody(root, source, file, unit, false)
	})
	if err != nil {
		return nil, err
	}
	return []*Unit{unit}, nil
}

// declareBody visits statements, descending into body_statement wrappers.
func (p *rubyParser) declareBody(node *sitter.Node, source []byte, file string, into sink, inType bool) {
	for _, child := range children(node) {
		if child.Kind() == "body_statement" {
			p.declareBody(child, source, file, into, inType)
			continue
		}
		p.declare(child, source, file, into, inType)
	}
}

func (p *rubyParser) declare(node *sitter.Node, source []byte, file string, into sink, inType bool) {
	loc := Location{File: file, Line: lineOf(node)}
	switch node.Kind() {
	case "class":
		p.declareType(node, KindClass, source, file, into)
	case "module":
		p.declareType(node, KindModule, source, file, into)
	case "singleton_class":
		p.declareBody(node, source, file, into, inType)
	case "method":
		name := fieldText(node, "name", source)
		if name == "" {
			return
		}
		kind := KindFunction
		if inType {
			kind = KindMethod
			if name == "initialize" {
				kind = KindConstructor
			}
		}
		into.AddMember(NewMember(name, kind, loc))
	case "singleton_method":
		if name := fieldText(node, "name", source); name != "" {
			into.AddMember(NewMember(name, KindMethod, loc))
		}
	case "assignment":
		left := node.ChildByFieldName("left")
		if left != nil && left.Kind() == "constant" {
			into.AddMember(NewMember(nodeText(left, source), KindConstant, loc))
		}
	case "call":
		if !inType {
			return
		}
		switch fieldText(node, "method", source) {
		case "attr_accessor", "attr_reader", "attr_writer":
		default:
			return
		}
		for _, arg := range children(node.ChildByFieldName("arguments")) {
			if arg.Kind() != "simple_symbol" {
				continue
			}
			name := strings.TrimPrefix(nodeText(arg, source), ":")
			into.AddMember(NewMember(name, KindField, Location{File: file, Line: lineOf(arg)}))
		}
	}
}

// declareType handles class and module bodies. Names such as A::B declare
// B; the enclosing scope is not reconstructed.
func (p *rubyParser) declareType(node *sitter.Node, kind Kind, source []byte, file string, into sink) {
	name := fieldText(node, "name", source)
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	if name == "" {
		return
	}
	t := into.AddType(NewType(name, kind, Location{File: file, Line: lineOf(node)}))
	p.declareBody(node, source, file, t, true)
}
