// Package ast provides the tree-sitter-backed AST utility: parse, find a
// named function, and find the node enclosing a line. It is a concrete
// implementation of the core's external AST contract, covering five
// languages as the contract requires.
package ast

import (
	"context"
	"fmt"

	"noetic/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language is a source language tree-sitter can parse.
type Language string

const (
	Go         Language = "go"
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Rust       Language = "rust"
)

func grammar(lang Language) *sitter.Language {
	switch lang {
	case Go:
		return golang.GetLanguage()
	case Python:
		return python.GetLanguage()
	case JavaScript:
		return javascript.GetLanguage()
	case TypeScript:
		return typescript.GetLanguage()
	case Rust:
		return rust.GetLanguage()
	default:
		return nil
	}
}

// functionNodeTypes lists the tree-sitter node kind that denotes a
// top-level function/method declaration per language grammar.
var functionNodeTypes = map[Language][]string{
	Go:         {"function_declaration", "method_declaration"},
	Python:     {"function_definition"},
	JavaScript: {"function_declaration", "method_definition"},
	TypeScript: {"function_declaration", "method_definition"},
	Rust:       {"function_item"},
}

// nameField is the tree-sitter field name holding the identifier of every
// function-like node type listed in functionNodeTypes.
const nameField = "name"

// Parser parses source text into a tree-sitter syntax tree for one of the
// five supported languages and can extract a function body by name or the
// node enclosing a given line.
type Parser struct{}

// NewParser returns a ready-to-use Parser. Tree-sitter parsers are cheap to
// construct per call here since the engine only parses on demand (bounded
// by the context compressor's file selection), unlike a long-lived scanner
// that would want to pool and reuse *sitter.Parser instances.
func NewParser() *Parser {
	return &Parser{}
}

// SupportsLanguage reports whether lang has a registered grammar.
func (p *Parser) SupportsLanguage(lang string) bool {
	return grammar(Language(lang)) != nil
}

// Parse parses content as lang, returning the tree-sitter tree. Callers
// must call tree.Close() when done.
func (p *Parser) Parse(content []byte, lang Language) (*sitter.Tree, error) {
	g := grammar(lang)
	if g == nil {
		return nil, fmt.Errorf("ast: unsupported language %q", lang)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.Get(logging.CategoryAST).Error("parse failed for %s: %v", lang, err)
		return nil, err
	}
	return tree, nil
}

// ExtractFunction implements compressor.FunctionExtractor: find a function
// or method named `name` in content and return its source text.
func (p *Parser) ExtractFunction(content, language, name string) (string, bool) {
	lang := Language(language)
	types, ok := functionNodeTypes[lang]
	if !ok {
		return "", false
	}
	tree, err := p.Parse([]byte(content), lang)
	if err != nil {
		return "", false
	}
	defer tree.Close()

	wantTypes := make(map[string]bool, len(types))
	for _, t := range types {
		wantTypes[t] = true
	}

	var found string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || found != "" {
			return
		}
		if wantTypes[n.Type()] {
			if id := n.ChildByFieldName(nameField); id != nil && id.Content([]byte(content)) == name {
				found = n.Content([]byte(content))
				return
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
			if found != "" {
				return
			}
		}
	}
	walk(tree.RootNode())
	logging.ASTDebug("ExtractFunction(%s, %s) found=%v", language, name, found != "")
	return found, found != ""
}

// FindNodeAtLine returns the smallest node (by content length) enclosing a
// zero-indexed line number, or ok=false if the line is out of range.
func (p *Parser) FindNodeAtLine(content []byte, lang Language, line int) (*sitter.Node, bool) {
	tree, err := p.Parse(content, lang)
	if err != nil {
		return nil, false
	}
	root := tree.RootNode()
	if line < 0 || uint32(line) > root.EndPoint().Row {
		return nil, false
	}
	point := sitter.Point{Row: uint32(line), Column: 0}
	node := root.NamedDescendantForPointRange(point, point)
	if node == nil {
		return nil, false
	}
	return node, true
}
