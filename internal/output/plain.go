package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
)

// templateData is passed to custom templates.
type templateData struct {
	Entry
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			if maxLen <= 0 || len(s) <= maxLen {
				return s
			}
			if maxLen <= 3 {
				return s[:maxLen]
			}
			return s[:maxLen-3] + "..."
		},
		"upper": strings.ToUpper,
	}
}

func parseTemplate(name, text string) *template.Template {
	if text == "" {
		return nil
	}
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(text)
	if err != nil {
		return nil
	}
	return tmpl
}

// PlainFormatter formats entries as plain text grouped by mood.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter. An invalid custom
// template falls back to the default layout.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	return &PlainFormatter{opts: opts, template: parseTemplate("plain", opts.Template)}
}

// Format writes entries as plain text.
func (f *PlainFormatter) Format(w io.Writer, entries []Entry) error {
	var current string
	for _, e := range entries {
		if f.template != nil {
			if err := f.template.Execute(w, templateData{e}); err != nil {
				return err
			}
			continue
		}

		if e.Mood != current {
			current = e.Mood
			if _, err := fmt.Fprintf(w, "%s:\n", e.Mood); err != nil {
				return err
			}
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("  [%d] %s", e.Index, e.Title))
		if f.opts.ShowSource {
			sb.WriteString("  " + e.Source)
			if !e.Exists {
				sb.WriteString(" (missing)")
			}
		}
		sb.WriteString("\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// DmenuFormatter writes one line per entry for dmenu, rofi or fuzzel.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	return &DmenuFormatter{opts: opts, template: parseTemplate("dmenu", opts.Template)}
}

// Format writes entries in dmenu format (one per line).
func (f *DmenuFormatter) Format(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, f.formatLine(e)); err != nil {
			return err
		}
	}
	return nil
}

// formatLine formats a single entry line: mood | title [| source].
func (f *DmenuFormatter) formatLine(e Entry) string {
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, templateData{e}); err == nil {
			return buf.String()
		}
	}

	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	parts := []string{e.Mood, e.Title}
	if f.opts.ShowSource {
		parts = append(parts, e.Source)
	}
	return strings.Join(parts, sep)
}
