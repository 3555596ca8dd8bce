package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/misfinder/internal/tree"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py"},
		lang:       python.GetLanguage(),
		Describe:   pythonDescribe,
	}
}

var pythonKinds = map[string]tree.Kind{
	"module":                  tree.KindRoot,
	"import_statement":        tree.KindImport,
	"import_from_statement":   tree.KindImport,
	"future_import_statement": tree.KindImport,
	"function_definition":     tree.KindFunction,
	"class_definition":        tree.KindClass,
	"call":                    tree.KindCall,
	"argument_list":           tree.KindArguments,
	"keyword_argument":        tree.KindKeyword,
	"for_statement":           tree.KindLoop,
	"while_statement":         tree.KindLoop,
	"assignment":              tree.KindAssignment,
	"augmented_assignment":    tree.KindAssignment,
	"attribute":               tree.KindAttribute,
	"subscript":               tree.KindSubscript,
	"identifier":              tree.KindIdentifier,
	"string":                  tree.KindLiteral,
	"concatenated_string":     tree.KindLiteral,
	"integer":                 tree.KindLiteral,
	"float":                   tree.KindLiteral,
	"true":                    tree.KindLiteral,
	"false":                   tree.KindLiteral,
	"none":                    tree.KindLiteral,
	"list":                    tree.KindSequence,
	"tuple":                   tree.KindSequence,
	"comparison_operator":     tree.KindComparison,
	"boolean_operator":        tree.KindComparison,
}

// PythonKind maps a Python grammar node type to its tree kind.
func PythonKind(nodeType string) tree.Kind {
	if k, ok := pythonKinds[nodeType]; ok {
		return k
	}
	return tree.KindOther
}

func pythonDescribe(node *sitter.Node, source []byte, out *tree.Node) []*sitter.Node {
	out.Kind = PythonKind(node.Type())

	switch out.Kind {
	case tree.KindRoot, tree.KindOther, tree.KindLoop, tree.KindAssignment,
		tree.KindArguments, tree.KindSequence:
		return namedChildren(node, nil)

	case tree.KindFunction, tree.KindClass:
		name := node.ChildByFieldName("name")
		if name != nil {
			out.Name = NodeText(name, source)
		}
		return namedChildren(node, name)

	case tree.KindCall:
		pythonDescribeCall(node, source, out)
		return namedChildren(node, nil)

	case tree.KindKeyword:
		if name := node.ChildByFieldName("name"); name != nil {
			out.Name = NodeText(name, source)
		}
		if value := node.ChildByFieldName("value"); value != nil {
			return []*sitter.Node{value}
		}
		return nil

	case tree.KindAttribute:
		out.Text = CollapseWhitespace(NodeText(node, source))
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			out.Name = NodeText(attr, source)
		}
		if obj := node.ChildByFieldName("object"); obj != nil {
			return []*sitter.Node{obj}
		}
		return nil

	case tree.KindSubscript, tree.KindComparison:
		out.Text = CollapseWhitespace(NodeText(node, source))
		return namedChildren(node, nil)

	case tree.KindIdentifier, tree.KindLiteral:
		out.Text = NodeText(node, source)
		return nil

	case tree.KindImport:
		out.Text = CollapseWhitespace(NodeText(node, source))
		out.Modules = pythonImportModules(node, source)
		return nil
	}

	return namedChildren(node, nil)
}

// pythonDescribeCall records the callee name of a call: the identifier for
// a direct call, the accessed attribute for a member call.
func pythonDescribeCall(node *sitter.Node, source []byte, out *tree.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	switch fn.Type() {
	case "identifier":
		out.Name = NodeText(fn, source)
	case "attribute":
		out.Member = true
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			out.Name = NodeText(attr, source)
		}
		if obj := fn.ChildByFieldName("object"); obj != nil && obj.Type() == "identifier" {
			out.Receiver = NodeText(obj, source)
		}
	}
}

// pythonImportModules returns the module paths an import names: every
// imported module for `import a, b as c`, the source module for
// `from m import x`.
func pythonImportModules(node *sitter.Node, source []byte) []string {
	if node.Type() != "import_statement" {
		if mod := node.ChildByFieldName("module_name"); mod != nil {
			return []string{NodeText(mod, source)}
		}
		if node.Type() == "future_import_statement" {
			return []string{"__future__"}
		}
		return nil
	}

	var modules []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			modules = append(modules, NodeText(child, source))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				modules = append(modules, NodeText(name, source))
			}
		}
	}
	return modules
}
