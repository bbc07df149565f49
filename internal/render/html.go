package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"stratagem-ai/internal/workspace"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer produces the page and its live fragments. It is safe for
// concurrent use.
type Renderer struct {
	tmpl   *template.Template
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates failed: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Markdown converts model or user text to sanitized HTML. Raw HTML in the
// source never survives.
func (r *Renderer) Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

// View is BuildView with plain-text bodies rendered to HTML.
func (r *Renderer) View(sessionID string, st workspace.State) StateView {
	view := BuildView(sessionID, st)
	for i := range view.Messages {
		if view.Messages[i].Structured == nil {
			view.Messages[i].HTML = r.Markdown(view.Messages[i].Text)
		}
	}
	return view
}

func (r *Renderer) Page(w io.Writer, sessionID string, st workspace.State) error {
	return r.execute(w, "page", r.View(sessionID, st))
}

func (r *Renderer) Transcript(w io.Writer, sessionID string, st workspace.State) error {
	return r.execute(w, "transcript", r.View(sessionID, st))
}

func (r *Renderer) Analysis(w io.Writer, st workspace.State) error {
	return r.execute(w, "analysis", buildPanel(st.Panel))
}

func (r *Renderer) execute(w io.Writer, name string, data any) error {
	if err := r.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render %s failed: %w", name, err)
	}
	return nil
}
