package lang

import "github.com/smacker/go-tree-sitter/python"

func init() {
	Languages["python"] = &Language{
		Name:         "python",
		Extensions:   []string{".py"},
		Interpreters: []string{"python", "python2", "python3"},
		lang:         python.GetLanguage(),
	}
}
