package decl

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

// phpParser maps PHP namespaces to namespaces and classes, interfaces,
// traits and enums to types.
type phpParser struct {
	treeSitterParser
}

// NewPhpParser creates a new PHP parser.
func NewPhpParser() Parser {
	lang := sitter.NewLanguage(php.LanguagePHP())
	return &phpParser{treeSitterParser: newTreeSitterParser(lang, "php", ".php")}
}

// Parse extracts the declarations of a PHP file. A file may declare
// several namespaces, either as blocks or as statements that apply to the
// declarations following them.
func (p *phpParser) Parse(ctx context.Context, file string, source []byte) ([]*Unit, error) {
	units := newUnitSet(file)
	err := p.parse(ctx, file, source, func(root *sitter.Node) {
		var current []string
		for _, child := range children(root) {
			if child.Kind() == "namespace_definition" {
				ns := namespaceSegments(fieldText(child, "name", source))
				if body := child.ChildByFieldName("body"); body != nil {
					unit := units.at(ns)
					for _, stmt := range children(body) {
						p.declare(stmt, source, file, unit)
					}
					continue
				}
				current = ns
				continue
			}
			p.declare(child, source, file, units.at(current))
		}
	})
	if err != nil {
		return nil, err
	}
	return units.units(), nil
}

func namespaceSegments(name string) []string {
	var out []string
	for _, segment := range strings.Split(name, `\`) {
		if segment != "" {
			out = append(out, segment)
		}
	}
	return out
}

func (p *phpParser) declare(node *sitter.Node, source []byte, file string, into sink) {
	loc := Location{File: file, Line: lineOf(node)}
	switch node.Kind() {
	case "class_declaration":
		p.declareType(node, KindClass, source, file, into)
	case "interface_declaration":
		p.declareType(node, KindInterface, source, file, into)
	case "trait_declaration":
		p.declareType(node, KindTrait, source, file, into)
	case "enum_declaration":
		p.declareType(node, KindEnum, source, file, into)
	case "function_definition":
		if name := fieldText(node, "name", source); name != "" {
			into.AddMember(NewMember(name, KindFunction, loc))
		}
	case "method_declaration":
		name := fieldText(node, "name", source)
		if name == "" {
			return
		}
		kind := KindMethod
		if strings.EqualFold(name, "__construct") {
			kind = KindConstructor
		}
		into.AddMember(NewMember(name, kind, loc))
	case "property_declaration":
		for _, element := range findChildrenByType(node, "property_element") {
			name := nodeText(findChildByType(element, "variable_name"), source)
			if name = strings.TrimPrefix(name, "$"); name != "" {
				into.AddMember(NewMember(name, KindField, Location{File: file, Line: lineOf(element)}))
			}
		}
	case "const_declaration":
		for _, element := range findChildrenByType(node, "const_element") {
			if name := nodeText(findChildByType(element, "name"), source); name != "" {
				into.AddMember(NewMember(name, KindConstant, Location{File: file, Line: lineOf(element)}))
			}
		}
	case "enum_case":
		if name := fieldText(node, "name", source); name != "" {
			into.AddMember(NewMember(name, KindEnumValue, loc))
		}
	}
}

func (p *phpParser) declareType(node *sitter.Node, kind Kind, source []byte, file string, into sink) {
	name := fieldText(node, "name", source)
	if name == "" {
		return
	}
	t := into.AddType(NewType(name, kind, Location{File: file, Line: lineOf(node)}))
	for _, child := range children(node.ChildByFieldName("body")) {
		p.declare(child, source, file, t)
	}
}
