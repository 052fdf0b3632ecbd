package preview

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"photo.png", CategoryImage},
		{"photo.JPG", CategoryImage},
		{"photo.Jpeg", CategoryImage},
		{"anim.gif", CategoryImage},
		{"scan.BMP", CategoryImage},
		{"notes.txt", CategoryText},
		{"notes.text", CategoryText},
		{"report.csv", CategoryText},
		{"data.JSON", CategoryText},
		{"feed.xml", CategoryText},
		{"index.html", CategoryHTML},
		{"index.HTM", CategoryHTML},
		{"paper.pdf", CategoryPDF},
		{"paper.PDF", CategoryPDF},
		{"archive.tar.gz", CategoryUnknown},
		{"archive.csv.gz", CategoryUnknown},
		{"data.gz.csv", CategoryText},
		{"Makefile", CategoryUnknown},
		{"txt", CategoryUnknown},
		{"trailingdot.", CategoryUnknown},
		{".bashrc", CategoryUnknown},
		{"", CategoryUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	for _, ext := range SupportedExtensions() {
		lower := "file" + ext
		upper := "file" + strings.ToUpper(ext)
		if Classify(lower) != Classify(upper) {
			t.Errorf("%s and %s classified differently", lower, upper)
		}
		if Classify(lower) == CategoryUnknown {
			t.Errorf("supported extension %s classified unknown", ext)
		}
	}
}

func TestClassifyNoDotIsUnknown(t *testing.T) {
	for _, name := range []string{"README", "LICENSE", "photo", "report-final", "a/b", "pdf", "CSV"} {
		if got := Classify(name); got != CategoryUnknown {
			t.Errorf("Classify(%q) = %s, want unknown", name, got)
		}
	}
}

func TestSupportedExtensions(t *testing.T) {
	want := []string{
		".png", ".jpg", ".jpeg", ".gif", ".bmp",
		".txt", ".text", ".csv", ".json", ".xml",
		".html", ".htm",
		".pdf",
	}
	got := SupportedExtensions()
	if len(got) != len(want) {
		t.Fatalf("expected %d extensions, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("extension %d: got %s, want %s (full list %v)", i, got[i], want[i], got)
		}
	}
}
