// Package views renders the HTML pages.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/rolegate/rolegate/types"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Page names.
const (
	Home            = "home"
	Register        = "register"
	Login           = "login"
	Account         = "account"
	PasswordChanged = "password_changed"
	Secret          = "secret"
	SecretAdmin     = "secret_admin"
)

var pages = []string{Home, Register, Login, Account, PasswordChanged, Secret, SecretAdmin}

// Data is passed to every template. User is nil for anonymous visitors.
type Data struct {
	User     *types.User
	Error    string
	Message  string
	Username string
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		tmpl, err := template.New("layout.html").ParseFS(templateFiles, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render writes the page with status. The page is executed into a buffer
// first so a template error never leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data Data) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
