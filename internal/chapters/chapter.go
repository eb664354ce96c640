package chapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// PageExt is the extension given to every saved page, whatever the source
// image format.
const PageExt = ".jpg"

// Chapter is one download unit: a reader page URL and the folder its pages
// are written to.
type Chapter struct {
	URL  string
	Name string
	Dir  string
}

// Page is an image discovered on the chapter page. Ordinal is 1-based and
// follows extraction order.
type Page struct {
	URL     string
	Ordinal int
}

// New resolves the chapter name (falling back to a timestamp name) and its
// directory under root. The directory is not created here.
func New(url, name, root string, now time.Time) Chapter {
	name = safeName(name)
	if name == "" {
		name = DefaultName(now)
	}

	return Chapter{
		URL:  url,
		Name: name,
		Dir:  filepath.Join(root, name),
	}
}

func DefaultName(now time.Time) string {
	return fmt.Sprintf("chapter_%d", now.Unix())
}

func (c Chapter) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0755)
}

func (c Chapter) PagePath(ordinal int) string {
	return filepath.Join(c.Dir, PageFileName(ordinal))
}

func (c Chapter) OutputCBZ() string {
	return c.Name + ".cbz"
}

// OutputCBZPath places the archive next to the chapter folder.
func (c Chapter) OutputCBZPath() string {
	return filepath.Join(filepath.Dir(c.Dir), c.OutputCBZ())
}

func PageFileName(ordinal int) string {
	return fmt.Sprintf("page_%03d%s", ordinal, PageExt)
}

// PagesFromURLs assigns ordinals in the order the URLs were extracted.
func PagesFromURLs(urls []string) []Page {
	pages := make([]Page, len(urls))
	for i, u := range urls {
		pages[i] = Page{URL: u, Ordinal: i + 1}
	}
	return pages
}

// safeName keeps the user's name readable but strips anything that would
// escape the download directory or break on common filesystems.
func safeName(s string) string {
	s = strings.TrimSpace(s)

	repl := []string{
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	}
	for i := 0; i < len(repl); i += 2 {
		s = strings.ReplaceAll(s, repl[i], repl[i+1])
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	return strings.Trim(s, ". ")
}
