package decl

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// typeScriptParser maps `namespace` blocks to namespaces; everything else
// lives in the global namespace.
type typeScriptParser struct {
	treeSitterParser
}

// NewTypeScriptParser creates a new TypeScript parser.
func NewTypeScriptParser() Parser {
	lang := sitter.NewLanguage(typescript.LanguageTypescript())
	return &typeScriptParser{treeSitterParser: newTreeSitterParser(lang, "typescript", ".ts", ".mts", ".cts")}
}

// NewTSXParser creates a parser for TypeScript files with JSX.
func NewTSXParser() Parser {
	lang := sitter.NewLanguage(typescript.LanguageTSX())
	return &typeScriptParser{treeSitterParser: newTreeSitterParser(lang, "tsx", ".tsx")}
}

// NewJavaScriptParser parses JavaScript with the TypeScript grammar, which
// accepts plain JavaScript.
func NewJavaScriptParser() Parser {
	lang := sitter.NewLanguage(typescript.LanguageTypescript())
	return &typeScriptParser{treeSitterParser: newTreeSitterParser(lang, "javascript", ".js", ".mjs", ".cjs")}
}

// Parse extracts the declarations of a TypeScript or JavaScript file.
func (p *typeScriptParser) Parse(ctx context.Context, file string, source []byte) ([]*Unit, error) {
	units := newUnitSet(file)
	err := p.parse(ctx, file, source, func(root *sitter.Node) {
		p.declareStatements(root, source, units, nil)
	})
	if err != nil {
		return nil, err
	}
	return units.units(), nil
}

func (p *typeScriptParser) declareStatements(block *sitter.Node, source []byte, units *unitSet, ns []string) {
	for _, child := range children(block) {
		p.declare(child, source, units, ns, units.at(ns))
	}
}

func (p *typeScriptParser) declare(node *sitter.Node, source []byte, units *unitSet, ns []string, into sink) {
	loc := Location{File: units.file, Line: lineOf(node)}
	switch node.Kind() {
	case "export_statement":
		if d := node.ChildByFieldName("declaration"); d != nil {
			p.declare(d, source, units, ns, into)
		}
	case "ambient_declaration", "expression_statement":
		for _, child := range children(node) {
			p.declare(child, source, units, ns, into)
		}
	case "internal_module", "module":
		name := strings.Trim(fieldText(node, "name", source), `"'`)
		body := node.ChildByFieldName("body")
		if name == "" || body == nil {
			return
		}
		nested := append(append([]string(nil), ns...), strings.Split(name, ".")...)
		p.declareStatements(body, source, units, nested)
	case "class_declaration", "abstract_class_declaration", "class":
		p.declareType(node, KindClass, source, units, into)
	case "interface_declaration":
		p.declareType(node, KindInterface, source, units, into)
	case "enum_declaration":
		p.declareType(node, KindEnum, source, units, into)
	case "type_alias_declaration":
		if name := fieldText(node, "name", source); name != "" {
			into.AddType(NewType(name, KindTypeAlias, loc))
		}
	case "function_declaration", "generator_function_declaration", "function_signature":
		if name := fieldText(node, "name", source); name != "" {
			into.AddMember(NewMember(name, KindFunction, loc))
		}
	case "method_definition", "method_signature", "abstract_method_signature":
		name := fieldText(node, "name", source)
		if name == "" {
			return
		}
		kind := KindMethod
		if name == "constructor" {
			kind = KindConstructor
		}
		into.AddMember(NewMember(name, kind, loc))
	case "public_field_definition", "property_signature":
		if name := fieldText(node, "name", source); name != "" {
			into.AddMember(NewMember(name, KindField, loc))
		}
	case "property_identifier":
		into.AddMember(NewMember(nodeText(node, source), KindEnumValue, loc))
	case "enum_assignment":
		if name := fieldText(node, "name", source); name != "" {
			into.AddMember(NewMember(name, KindEnumValue, loc))
		}
	case "lexical_declaration", "variable_declaration":
		kind := KindVariable
		if node.Kind() == "lexical_declaration" && strings.HasPrefix(nodeText(node, source), "const") {
			kind = KindConstant
		}
		for _, declarator := range findChildrenByType(node, "variable_declarator") {
			name := declarator.ChildByFieldName("name")
			if name == nil || name.Kind() != "identifier" {
				continue
			}
			into.AddMember(NewMember(nodeText(name, source), kind, Location{File: units.file, Line: lineOf(declarator)}))
		}
	}
}

func (p *typeScriptParser) declareType(node *sitter.Node, kind Kind, source []byte, units *unitSet, into sink) {
	name := fieldText(node, "name", source)
	if name == "" {
		return
	}
	t := into.AddType(NewType(name, kind, Location{File: units.file, Line: lineOf(node)}))
	for _, child := range children(node.ChildByFieldName("body")) {
		p.declare(child, source, units, nil, t)
	}
}
