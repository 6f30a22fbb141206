package decl

import (
	"context"
	"fmt"
	"path"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// treeSitterParser holds what every tree-sitter based parser shares.
type treeSitterParser struct {
	language   *sitter.Language
	lang       string
	extensions []string
}

func newTreeSitterParser(language *sitter.Language, lang string, extensions ...string) treeSitterParser {
	return treeSitterParser{language: language, lang: lang, extensions: extensions}
}

func (p treeSitterParser) Language() string { return p.lang }

func (p treeSitterParser) Extensions() []string { return p.extensions }

// parse runs tree-sitter over source and calls visit with the root node.
// Syntax errors do not fail the parse; tree-sitter recovers and the
// well-formed declarations are still visited.
func (p treeSitterParser) parse(ctx context.Context, file string, source []byte, visit func(root *sitter.Node)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.language); err != nil {
		return fmt.Errorf("failed to set %s language: %w", p.lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return fmt.Errorf("failed to parse %s file: %s", p.lang, file)
	}
	defer tree.Close()

	visit(tree.RootNode())
	return nil
}

// nodeText extracts the text content of a tree-sitter node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// fieldText returns the text of the named field of node.
func fieldText(node *sitter.Node, field string, source []byte) string {
	if node == nil {
		return ""
	}
	return nodeText(node.ChildByFieldName(field), source)
}

// lineOf returns the 1-based line a node starts on.
func lineOf(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// children returns the direct children of node.
func children(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.ChildCount())
	for i := 0; i < int(node.ChildCount()); i++ {
		out = append(out, node.Child(uint(i)))
	}
	return out
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	for _, child := range children(node) {
		if child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// findChildrenByType finds all child nodes with the given type.
func findChildrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	for _, child := range children(node) {
		if child.Kind() == nodeType {
			results = append(results, child)
		}
	}
	return results
}

// isUpperSnake reports whether name looks like a constant: letters all
// uppercase, at least one letter.
func isUpperSnake(name string) bool {
	hasLetter := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= 'a' && r <= 'z':
			return false
		}
	}
	return hasLetter
}

// modulePath turns a relative file path into namespace segments: its
// directories plus the file name without extension.
func modulePath(file string) []string {
	file = strings.TrimSuffix(file, path.Ext(file))
	var out []string
	for _, segment := range strings.Split(file, "/") {
		if segment != "" && segment != "." {
			out = append(out, segment)
		}
	}
	return out
}
