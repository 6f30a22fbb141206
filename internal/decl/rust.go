package decl

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

// rustParser maps crate modules (by file path and inline mod blocks) to
// namespaces. Items of impl blocks are attached to their self type.
type rustParser struct {
	treeSitterParser
}

// NewRustParser creates a new Rust parser.
func NewRustParser() Parser {
	lang := sitter.NewLanguage(rust.Language())
	return &rustParser{treeSitterParser: newTreeSitterParser(lang, "rust", ".rs")}
}

// Parse extracts the declarations of a Rust source file.
func (p *rustParser) Parse(ctx context.Context, file string, source []byte) ([]*Unit, error) {
	units := newUnitSet(file)
	err := p.parse(ctx, file, source, func(root *sitter.Node) {
		p.declareItems(root, source, units, crateModule(file))
	})
	if err != nil {
		return nil, err
	}
	return units.units(), nil
}

// crateModule derives the module path of a file: src/a/b.rs is a::b,
// src/a/mod.rs is a, and lib.rs or main.rs is the crate root.
func crateModule(file string) []string {
	segments := modulePath(file)
	if len(segments) > 0 && segments[0] == "src" {
		segments = segments[1:]
	}
	if n := len(segments); n > 0 {
		switch segments[n-1] {
		case "mod":
			segments = segments[:n-1]
		case "lib", "main":
			if n == 1 {
				segments = nil
			}
		}
	}
	return segments
}

func (p *rustParser) declareItems(block *sitter.Node, source []byte, units *unitSet, ns []string) {
	unit := units.at(ns)
	for _, item := range children(block) {
		loc := Location{File: units.file, Line: lineOf(item)}
		switch item.Kind() {
		case "mod_item":
			name := fieldText(item, "name", source)
			if body := item.ChildByFieldName("body"); name != "" && body != nil {
				p.declareItems(body, source, units, append(append([]string(nil), ns...), name))
			}
		case "impl_item":
			p.declareImpl(item, source, unit)
		default:
			p.declare(item, source, units.file, unit, loc)
		}
	}
}

func (p *rustParser) declare(item *sitter.Node, source []byte, file string, into sink, loc Location) {
	name := fieldText(item, "name", source)
	if name == "" {
		return
	}
	switch item.Kind() {
	case "struct_item", "union_item":
		t := into.AddType(NewType(name, KindStruct, loc))
		for _, field := range findChildrenByType(item.ChildByFieldName("body"), "field_declaration") {
			if fieldName := fieldText(field, "name", source); fieldName != "" {
				t.AddMember(NewMember(fieldName, KindField, Location{File: file, Line: lineOf(field)}))
			}
		}
	case "enum_item":
		t := into.AddType(NewType(name, KindEnum, loc))
		for _, variant := range findChildrenByType(item.ChildByFieldName("body"), "enum_variant") {
			if variantName := fieldText(variant, "name", source); variantName != "" {
				t.AddMember(NewMember(variantName, KindEnumValue, Location{File: file, Line: lineOf(variant)}))
			}
		}
	case "trait_item":
		t := into.AddType(NewType(name, KindTrait, loc))
		for _, child := range children(item.ChildByFieldName("body")) {
			p.declareAssociated(child, source, file, func(m *Member) { t.AddMember(m) })
		}
	case "type_item":
		into.AddType(NewType(name, KindTypeAlias, loc))
	case "function_item", "function_signature_item":
		into.AddMember(NewMember(name, KindFunction, loc))
	case "const_item":
		into.AddMember(NewMember(name, KindConstant, loc))
	case "static_item":
		into.AddMember(NewMember(name, KindVariable, loc))
	}
}

func (p *rustParser) declareImpl(item *sitter.Node, source []byte, unit *Unit) {
	typeName := selfTypeName(item.ChildByFieldName("type"), source)
	if typeName == "" {
		return
	}
	for _, child := range children(item.ChildByFieldName("body")) {
		p.declareAssociated(child, source, unit.File, func(m *Member) { unit.Attach(typeName, m) })
	}
}

// declareAssociated handles the items allowed inside trait and impl bodies.
func (p *rustParser) declareAssociated(node *sitter.Node, source []byte, file string, add func(*Member)) {
	name := fieldText(node, "name", source)
	if name == "" {
		return
	}
	loc := Location{File: file, Line: lineOf(node)}
	switch node.Kind() {
	case "function_item", "function_signature_item":
		kind := KindMethod
		if name == "new" {
			kind = KindConstructor
		}
		add(NewMember(name, kind, loc))
	case "const_item":
		add(NewMember(name, KindConstant, loc))
	case "associated_type", "type_item":
		add(NewMember(name, KindTypeAlias, loc))
	}
}

// selfTypeName reduces `Foo<T>`, `crate::a::Foo` and `&Foo` to `Foo`.
func selfTypeName(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "generic_type":
		return selfTypeName(node.ChildByFieldName("type"), source)
	case "scoped_type_identifier":
		return nodeText(node.ChildByFieldName("name"), source)
	case "reference_type":
		return selfTypeName(node.ChildByFieldName("type"), source)
	}
	text := nodeText(node, source)
	if i := strings.LastIndex(text, "::"); i >= 0 {
		text = text[i+2:]
	}
	return text
}
