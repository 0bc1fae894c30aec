package directive

import "fmt"

// FormatInclude renders a bare include directive.
func FormatInclude(prefix, snippet, comment string) string {
	return fmt.Sprintf("%s###$_include: %s%s\n", prefix, snippet, comment)
}

// FormatBegin renders the marker opening a bound snippet.
func FormatBegin(prefix, snippet, comment string) string {
	return fmt.Sprintf("%s###$_begin-include: %s%s\n", prefix, snippet, comment)
}

// FormatEnd renders the marker closing a bound snippet.
func FormatEnd(prefix, snippet string) string {
	return fmt.Sprintf("%s###$_end-include: %s\n", prefix, snippet)
}

// FormatRequiresSatisfied renders the marker left in place of a require whose
// file was already bound earlier in the same run.
func FormatRequiresSatisfied(prefix, snippet, path string) string {
	return fmt.Sprintf("%s###$_requires-satisfied: %s as %s\n", prefix, snippet, path)
}

// FormatMeta renders one line of provenance metadata.
func FormatMeta(prefix, text string) string {
	return fmt.Sprintf("%s###| %s\n", prefix, text)
}
