// Package preview classifies volume files by extension and builds the
// render model shown in the viewer pane.
package preview

import "strings"

// Category is the content category derived from a file name.
type Category string

const (
	CategoryImage   Category = "image"
	CategoryText    Category = "text"
	CategoryHTML    Category = "html"
	CategoryPDF     Category = "pdf"
	CategoryUnknown Category = "unknown"
)

// Lookup order matters: the first set containing the extension wins.
var categorySets = []struct {
	category   Category
	extensions []string
}{
	{CategoryImage, []string{"png", "jpg", "jpeg", "gif", "bmp"}},
	{CategoryText, []string{"txt", "text", "csv", "json", "xml"}},
	{CategoryHTML, []string{"html", "htm"}},
	{CategoryPDF, []string{"pdf"}},
}

// Extension returns the lowercased text after the last "." of name, or the
// whole lowercased name when it has no ".".
func Extension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

// Classify maps a file name to its Category. It never fails; unrecognized
// names, and names without any ".", are CategoryUnknown.
func Classify(name string) Category {
	if !strings.Contains(name, ".") {
		return CategoryUnknown
	}
	ext := Extension(name)
	for _, set := range categorySets {
		for _, e := range set.extensions {
			if ext == e {
				return set.category
			}
		}
	}
	return CategoryUnknown
}

// SupportedExtensions lists every recognized extension with a leading dot,
// in lookup order.
func SupportedExtensions() []string {
	var exts []string
	for _, set := range categorySets {
		for _, e := range set.extensions {
			exts = append(exts, "."+e)
		}
	}
	return exts
}
