package decl

import (
	"context"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// pythonParser maps modules (by file path) to namespaces and classes to
// types.
type pythonParser struct {
	treeSitterParser
}

// NewPythonParser creates a new Python parser.
func NewPythonParser() Parser {
	lang := sitter.NewLanguage(python.Language())
	return &pythonParser{treeSitterParser: newTreeSitterParser(lang, "python", ".py", ".pyi")}
}

// Parse extracts the declarations of a Python module.
func (p *pythonParser) Parse(ctx context.Context, file string, source []byte) ([]*Unit, error) {
	ns := modulePath(file)
	if n := len(ns); n > 0 && ns[n-1] == "__init__" {
		ns = ns[:n-1]
	}
	unit := &Unit{File: file, Namespace: ns}
	err := p.parse(ctx, file, source, func(root *sitter.Node) {
		for _, child := range children(root) {
			p.declare(child, source, file, unit, false)
		}
	})
	if err != nil {
		return nil, err
	}
	return []*Unit{unit}, nil
}

func (p *pythonParser) declare(node *sitter.Node, source []byte, file string, into sink, inClass bool) {
	loc := Location{File: file, Line: lineOf(node)}
	switch node.Kind() {
	case "class_definition":
		name := fieldText(node, "name", source)
		if name == "" {
			return
		}
		t := into.AddType(NewType(name, KindClass, loc))
		for _, child := range children(node.ChildByFieldName("body")) {
			p.declare(child, source, file, t, true)
		}
	case "function_definition":
		name := fieldText(node, "name", source)
		if name == "" {
			return
		}
		kind := KindFunction
		if inClass {
			kind = KindMethod
			if name == "__init__" {
				kind = KindConstructor
			}
		}
		into.AddMember(NewMember(name, kind, loc))
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil {
			p.declare(def, source, file, into, inClass)
		}
	case "expression_statement":
		for _, assignment := range findChildrenByType(node, "assignment") {
			left := assignment.ChildByFieldName("left")
			if left == nil || left.Kind() != "identifier" {
				continue
			}
			name := nodeText(left, source)
			kind := KindVariable
			switch {
			case isUpperSnake(name):
				kind = KindConstant
			case inClass:
				kind = KindField
			}
			into.AddMember(NewMember(name, kind, loc))
		}
	}
}
