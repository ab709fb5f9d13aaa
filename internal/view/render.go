package view

import (
	"bytes"
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names used by the router.
const (
	PageTemplate   = "page"
	ScreenTemplate = "screen"
)

var templates = template.Must(template.New("display").ParseFS(templateFS, "templates/*.html"))

// Templates returns the parsed display templates, for gin's HTML renderer.
func Templates() *template.Template {
	return templates
}

func Render(w io.Writer, name string, m Model) error {
	return templates.ExecuteTemplate(w, name, m)
}

// Fragment renders just the screen, as pushed over the event stream.
func Fragment(m Model) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, ScreenTemplate, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}
