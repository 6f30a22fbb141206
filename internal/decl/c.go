package decl

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
)

// cParser places every file-scope declaration in the global namespace.
// Structs, unions and enums with a body become types.
type cParser struct {
	treeSitterParser
}

// NewCParser creates a new C parser.
func NewCParser() Parser {
	lang := sitter.NewLanguage(c.Language())
	return &cParser{treeSitterParser: newTreeSitterParser(lang, "c", ".c", ".h")}
}

// Parse extracts the file-scope declarations of a C source or header file.
func (p *cParser) Parse(ctx context.Context, file string, source []byte) ([]*Unit, error) {
	unit := &Unit{File: file}
	err := p.parse(ctx, file, source, func(root *sitter.Node) {
		p.declareTopLevel(root, source, unit)
	})
	if err != nil {
		return nil, err
	}
	return []*Unit{unit}, nil
}

func (p *cParser) declareTopLevel(node *sitter.Node, source []byte, unit *Unit) {
	for _, child := range children(node) {
		loc := Location{File: unit.File, Line: lineOf(child)}
		switch child.Kind() {
		case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "linkage_specification", "declaration_list":
			p.declareTopLevel(child, source, unit)
		case "function_definition":
			if name := declaratorName(child.ChildByFieldName("declarator"), source); name != "" {
				unit.AddMember(NewMember(name, KindFunction, loc))
			}
		case "declaration":
			p.declareSpecifier(child.ChildByFieldName("type"), "", source, unit)
			for _, d := range declarators(child) {
				name := declaratorName(d, source)
				if name == "" {
					continue
				}
				kind := KindVariable
				if isFunctionDeclarator(d) {
					kind = KindFunction
				}
				unit.AddMember(NewMember(name, kind, loc))
			}
		case "type_definition":
			p.declareTypedef(child, source, unit)
		case "struct_specifier", "union_specifier", "enum_specifier":
			p.declareSpecifier(child, "", source, unit)
		case "preproc_def", "preproc_function_def":
			if name := fieldText(child, "name", source); name != "" {
				unit.AddMember(NewMember(name, KindConstant, loc))
			}
		}
	}
}

// declareTypedef declares `typedef struct {...} Name;` as a type called
// Name and any other typedef as an alias.
func (p *cParser) declareTypedef(node *sitter.Node, source []byte, unit *Unit) {
	var aliases []string
	for _, d := range declarators(node) {
		if name := declaratorName(d, source); name != "" {
			aliases = append(aliases, name)
		}
	}
	if len(aliases) == 0 {
		return
	}
	spec := node.ChildByFieldName("type")
	if p.declareSpecifier(spec, aliases[0], source, unit) && fieldText(spec, "name", source) == "" {
		aliases = aliases[1:]
	}
	for _, alias := range aliases {
		unit.AddType(NewType(alias, KindTypeAlias, Location{File: unit.File, Line: lineOf(node)}))
	}
}

// declareSpecifier declares a struct, union or enum that has a body. An
// anonymous specifier takes fallbackName; anonymous enums without one
// declare their enumerators as global constants. It reports whether a
// type was declared.
func (p *cParser) declareSpecifier(spec *sitter.Node, fallbackName string, source []byte, unit *Unit) bool {
	if spec == nil {
		return false
	}
	body := spec.ChildByFieldName("body")
	if body == nil {
		return false
	}
	name := fieldText(spec, "name", source)
	if name == "" {
		name = fallbackName
	}
	loc := Location{File: unit.File, Line: lineOf(spec)}

	switch spec.Kind() {
	case "struct_specifier", "union_specifier":
		if name == "" {
			return false
		}
		t := unit.AddType(NewType(name, KindStruct, loc))
		for _, field := range findChildrenByType(body, "field_declaration") {
			for _, d := range declarators(field) {
				if fieldName := declaratorName(d, source); fieldName != "" {
					t.AddMember(NewMember(fieldName, KindField, Location{File: unit.File, Line: lineOf(field)}))
				}
			}
		}
		return true
	case "enum_specifier":
		var into sink = unit
		if name != "" {
			into = unit.AddType(NewType(name, KindEnum, loc))
		}
		for _, e := range findChildrenByType(body, "enumerator") {
			if valueName := fieldText(e, "name", source); valueName != "" {
				into.AddMember(NewMember(valueName, KindEnumValue, Location{File: unit.File, Line: lineOf(e)}))
			}
		}
		return name != ""
	}
	return false
}

// declaratorKinds are the node kinds that can fill a declarator field.
var declaratorKinds = map[string]bool{
	"identifier":               true,
	"field_identifier":         true,
	"init_declarator":          true,
	"pointer_declarator":       true,
	"array_declarator":         true,
	"function_declarator":      true,
	"parenthesized_declarator": true,
	"attributed_declarator":    true,
}

// declarators returns the declarator children of a declaration. The names
// a typedef introduces are type_identifier nodes other than its type field.
func declarators(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	typeNode := node.ChildByFieldName("type")
	for _, child := range children(node) {
		kind := child.Kind()
		if declaratorKinds[kind] || (node.Kind() == "type_definition" && kind == "type_identifier" && !sameNode(child, typeNode)) {
			out = append(out, child)
		}
	}
	return out
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// declaratorName unwraps pointer, array, function and init declarators
// down to the declared identifier.
func declaratorName(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "identifier", "field_identifier", "type_identifier":
		return nodeText(node, source)
	case "parenthesized_declarator", "attributed_declarator":
		for _, child := range children(node) {
			if name := declaratorName(child, source); name != "" {
				return name
			}
		}
		return ""
	}
	if inner := node.ChildByFieldName("declarator"); inner != nil {
		return declaratorName(inner, source)
	}
	return strings.TrimSpace(nodeText(findChildByType(node, "identifier"), source))
}

func isFunctionDeclarator(node *sitter.Node) bool {
	for node != nil {
		switch node.Kind() {
		case "function_declarator":
			return true
		case "identifier", "field_identifier", "type_identifier":
			return false
		}
		node = node.ChildByFieldName("declarator")
	}
	return false
}
