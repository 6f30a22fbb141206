package decl

import (
	"context"
	"slices"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

// javaParser maps packages to namespaces and classes, interfaces, enums
// and records to types.
type javaParser struct {
	treeSitterParser
}

// NewJavaParser creates a new Java parser.
func NewJavaParser() Parser {
	lang := sitter.NewLanguage(java.Language())
	return &javaParser{treeSitterParser: newTreeSitterParser(lang, "java", ".java")}
}

// Parse extracts the declarations of a Java source file.
func (p *javaParser) Parse(ctx context.Context, file string, source []byte) ([]*Unit, error) {
	unit := &Unit{File: file}
	err := p.parse(ctx, file, source, func(root *sitter.Node) {
		for _, child := range children(root) {
			if child.Kind() == "package_declaration" {
				unit.Namespace = packageSegments(child, source)
				continue
			}
			p.declare(child, source, file, unit)
		}
	})
	if err != nil {
		return nil, err
	}
	return []*Unit{unit}, nil
}

func packageSegments(node *sitter.Node, source []byte) []string {
	nameNode := findChildByType(node, "scoped_identifier")
	if nameNode == nil {
		nameNode = findChildByType(node, "identifier")
	}
	if nameNode == nil {
		return nil
	}
	return strings.Split(nodeText(nameNode, source), ".")
}

func (p *javaParser) declare(node *sitter.Node, source []byte, file string, into sink) {
	loc := Location{File: file, Line: lineOf(node)}
	switch node.Kind() {
	case "class_declaration":
		p.declareType(node, KindClass, source, file, into)
	case "interface_declaration", "annotation_type_declaration":
		p.declareType(node, KindInterface, source, file, into)
	case "enum_declaration":
		p.declareType(node, KindEnum, source, file, into)
	case "record_declaration":
		t := p.declareType(node, KindRecord, source, file, into)
		if t == nil {
			return
		}
		for _, param := range findChildrenByType(node.ChildByFieldName("parameters"), "formal_parameter") {
			if name := fieldText(param, "name", source); name != "" {
				t.AddMember(NewMember(name, KindField, Location{File: file, Line: lineOf(param)}))
			}
		}
	case "method_declaration", "annotation_type_element_declaration":
		if name := fieldText(node, "name", source); name != "" {
			into.AddMember(NewMember(name, KindMethod, loc))
		}
	case "constructor_declaration", "compact_constructor_declaration":
		if name := fieldText(node, "name", source); name != "" {
			into.AddMember(NewMember(name, KindConstructor, loc))
		}
	case "field_declaration", "constant_declaration":
		kind := KindField
		if node.Kind() == "constant_declaration" || hasModifiers(node, source, "static", "final") {
			kind = KindConstant
		}
		for _, declarator := range findChildrenByType(node, "variable_declarator") {
			if name := fieldText(declarator, "name", source); name != "" {
				into.AddMember(NewMember(name, kind, Location{File: file, Line: lineOf(declarator)}))
			}
		}
	case "enum_constant":
		if name := fieldText(node, "name", source); name != "" {
			into.AddMember(NewMember(name, KindEnumValue, loc))
		}
	case "enum_body_declarations":
		for _, child := range children(node) {
			p.declare(child, source, file, into)
		}
	}
}

func (p *javaParser) declareType(node *sitter.Node, kind Kind, source []byte, file string, into sink) *Type {
	name := fieldText(node, "name", source)
	if name == "" {
		return nil
	}
	t := into.AddType(NewType(name, kind, Location{File: file, Line: lineOf(node)}))
	for _, child := range children(node.ChildByFieldName("body")) {
		p.declare(child, source, file, t)
	}
	return t
}

// hasModifiers reports whether the declaration carries every keyword.
func hasModifiers(node *sitter.Node, source []byte, keywords ...string) bool {
	modifiers := findChildByType(node, "modifiers")
	if modifiers == nil {
		return false
	}
	present := strings.Fields(nodeText(modifiers, source))
	for _, kw := range keywords {
		if !slices.Contains(present, kw) {
			return false
		}
	}
	return true
}
