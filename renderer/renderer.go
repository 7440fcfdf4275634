package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed templates/*.md
var templatesFS embed.FS

// templates is the templates directory, so that templates are addressed by their base name.
var templates, _ = fs.Sub(templatesFS, "templates")

// shared partials, available to every report.
var partials = map[string]string{
	"totals": "totals.md",
}

// RenderDay renders the meals of a day and their totals to a markdown string.
func RenderDay(d *Day) string {
	return renderTemplate("day", "day.md", partials, d)
}

// RenderCandidate renders the preview of a candidate meal at its current portion.
func RenderCandidate(c *Candidate) string {
	return renderTemplate("candidate", "candidate.md", partials, c)
}

// RenderHistory renders the daily totals over a range of days.
func RenderHistory(h *History) string {
	return renderTemplate("history", "history.md", partials, h)
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		// An empty file name is a valid case, resulting in an empty template.
		if file != "" {
			content, err = fs.ReadFile(templates, file)
			if err != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
