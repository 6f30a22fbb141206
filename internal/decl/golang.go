package decl

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"strings"
)

// goParser maps each package to a namespace named by its import path
// segments. Methods are attached to their receiver types, which may be
// declared in another file of the package.
type goParser struct {
	modulePath string
}

// NewGoParser creates a Go parser. modulePath is the module path from
// go.mod; it prefixes the directory of each file to form import paths.
func NewGoParser(modulePath string) Parser {
	return &goParser{modulePath: modulePath}
}

func (p *goParser) Language() string { return "go" }

func (p *goParser) Extensions() []string { return []string{".go"} }

// Parse extracts the package-level declarations of a Go source file.
func (p *goParser) Parse(ctx context.Context, file string, source []byte) ([]*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, file, source, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	unit := &Unit{File: file, Namespace: p.importPath(file)}
	for _, d := range node.Decls {
		switch decl := d.(type) {
		case *ast.GenDecl:
			p.processGenDecl(decl, fset, unit)
		case *ast.FuncDecl:
			p.processFuncDecl(decl, fset, unit)
		}
	}
	return []*Unit{unit}, nil
}

func (p *goParser) importPath(file string) []string {
	dir := path.Dir(file)
	if dir == "." {
		dir = ""
	}
	full := strings.Trim(path.Join(p.modulePath, dir), "/")
	if full == "" || full == "." {
		return nil
	}
	return strings.Split(full, "/")
}

func location(fset *token.FileSet, pos token.Pos) Location {
	position := fset.Position(pos)
	return Location{File: position.Filename, Line: position.Line}
}

// processGenDecl processes general declarations (types, constants, variables).
func (p *goParser) processGenDecl(decl *ast.GenDecl, fset *token.FileSet, unit *Unit) {
	for _, spec := range decl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			p.processTypeSpec(s, fset, unit)
		case *ast.ValueSpec:
			kind := KindVariable
			if decl.Tok == token.CONST {
				kind = KindConstant
			}
			for _, name := range s.Names {
				if name.Name == "_" {
					continue
				}
				unit.AddMember(NewMember(name.Name, kind, location(fset, name.Pos())))
			}
		}
	}
}

// processTypeSpec declares a type with its fields or interface methods.
func (p *goParser) processTypeSpec(spec *ast.TypeSpec, fset *token.FileSet, unit *Unit) {
	kind := KindTypeAlias
	var fields *ast.FieldList
	memberKind := KindField
	switch t := spec.Type.(type) {
	case *ast.StructType:
		kind, fields = KindStruct, t.Fields
	case *ast.InterfaceType:
		kind, fields, memberKind = KindInterface, t.Methods, KindMethod
	}

	typ := unit.AddType(NewType(spec.Name.Name, kind, location(fset, spec.Pos())))
	if fields == nil {
		return
	}
	for _, field := range fields.List {
		if len(field.Names) == 0 {
			// Embedded field or interface: named after its type.
			if name := baseTypeName(field.Type); name != "" {
				typ.AddMember(NewMember(name, KindField, location(fset, field.Pos())))
			}
			continue
		}
		for _, name := range field.Names {
			typ.AddMember(NewMember(name.Name, memberKind, location(fset, name.Pos())))
		}
	}
}

// processFuncDecl declares functions and attaches methods to receivers.
func (p *goParser) processFuncDecl(decl *ast.FuncDecl, fset *token.FileSet, unit *Unit) {
	loc := location(fset, decl.Pos())
	if decl.Recv == nil || len(decl.Recv.List) == 0 {
		if decl.Name.Name == "init" || decl.Name.Name == "_" {
			return
		}
		unit.AddMember(NewMember(decl.Name.Name, KindFunction, loc))
		return
	}
	if recv := baseTypeName(decl.Recv.List[0].Type); recv != "" {
		unit.Attach(recv, NewMember(decl.Name.Name, KindMethod, loc))
	}
}

// baseTypeName reduces *T, T[P] and pkg.T to T.
func baseTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return baseTypeName(t.X)
	case *ast.IndexExpr:
		return baseTypeName(t.X)
	case *ast.IndexListExpr:
		return baseTypeName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.ParenExpr:
		return baseTypeName(t.X)
	}
	return ""
}
