package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
)

// RendererConfig configures the renderer
type RendererConfig struct {
	PrettyPrint bool

	// TemplateDir and TemplatePattern locate the HTML templates used by
	// actions declared with Render. Both empty means no templates.
	TemplateDir     string
	TemplatePattern string
}

// Renderer writes action results to an http.ResponseWriter
type Renderer struct {
	prettyPrint    bool
	templates      *template.Template
	defaultHeaders map[string]string
}

// NewRenderer creates a new response renderer
func NewRenderer() *Renderer {
	return &Renderer{
		defaultHeaders: make(map[string]string),
	}
}

// NewRendererWithConfig creates a renderer and loads its templates
func NewRendererWithConfig(config RendererConfig) (*Renderer, error) {
	r := NewRenderer()
	r.prettyPrint = config.PrettyPrint
	if config.TemplateDir != "" {
		pattern := config.TemplatePattern
		if pattern == "" {
			pattern = "*.html"
		}
		if err := r.LoadTemplates(config.TemplateDir, pattern); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetTemplates sets the template set used by Render and HTML
func (r *Renderer) SetTemplates(templates *template.Template) {
	r.templates = templates
}

// LoadTemplates loads HTML templates from a directory
func (r *Renderer) LoadTemplates(dir string, pattern string) error {
	tmpl, err := template.ParseGlob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	r.templates = tmpl
	return nil
}

// SetDefaultHeader sets a default header for all responses
func (r *Renderer) SetDefaultHeader(key, value string) {
	r.defaultHeaders[key] = value
}

func (r *Renderer) applyDefaults(w http.ResponseWriter) {
	for key, value := range r.defaultHeaders {
		w.Header().Set(key, value)
	}
}

// JSON renders a JSON response. A Content-Type already set on w is kept.
func (r *Renderer) JSON(w http.ResponseWriter, statusCode int, data any) error {
	r.applyDefaults(w)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if r.prettyPrint {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	w.WriteHeader(statusCode)
	_, err := w.Write(buf.Bytes())
	return err
}

// Text renders a plain text response. A Content-Type already set on w is kept.
func (r *Renderer) Text(w http.ResponseWriter, statusCode int, text string) error {
	r.applyDefaults(w)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(statusCode)
	_, err := w.Write([]byte(text))
	return err
}

// Render executes the named template into a string
func (r *Renderer) Render(name string, data any) (string, error) {
	if r.templates == nil {
		return "", fmt.Errorf("no templates loaded")
	}
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// HTML renders the named template as an HTML response. Nothing is written when
// the template fails.
func (r *Renderer) HTML(w http.ResponseWriter, statusCode int, name string, data any) error {
	html, err := r.Render(name, data)
	if err != nil {
		return err
	}
	r.applyDefaults(w)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(statusCode)
	_, err = w.Write([]byte(html))
	return err
}

// Redirect sends a redirect response
func (r *Renderer) Redirect(w http.ResponseWriter, req *http.Request, url string, statusCode int) {
	http.Redirect(w, req, url, statusCode)
}

// NoContent sends a 204 No Content response
func (r *Renderer) NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
