package lang

import "github.com/smacker/go-tree-sitter/bash"

// Plain sh, ash and dash scripts are parsed with the bash grammar; it
// accepts the POSIX subset they use.
func init() {
	Languages["bash"] = &Language{
		Name:         "bash",
		Extensions:   []string{".sh", ".bash"},
		Interpreters: []string{"sh", "bash", "ash", "dash", "ksh"},
		lang:         bash.GetLanguage(),
	}
}
