// Package view holds the html/template components rendered by the server.
package view

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"net/http"

	"github.com/gwlsn/authgate/internal/gate"
)

var templates = template.Must(template.New("").Parse(`
{{define "greeting"}}<p class="greeting">Hello, {{.Name}}!</p>{{end}}
{{define "account"}}<section class="account"><h2>Account</h2><dl><dt>ID</dt><dd>{{.ID}}</dd>{{if .Email}}<dt>Email</dt><dd>{{.Email}}</dd>{{end}}</dl><form method="POST" action="/auth/logout"><button type="submit">Log out</button></form></section>{{end}}
{{define "login"}}<p class="login"><a href="{{.URL}}">Log in</a></p>{{end}}
{{define "layout"}}<!doctype html><html><head><title>{{.Title}}</title></head><body><h1>{{.Title}}</h1>{{.Body}}</body></html>{{end}}
`))

// Template returns a Node that executes the named template with data.
func Template(name string, data any) gate.Node {
	return gate.NodeFunc(func(_ context.Context, w io.Writer) error {
		return templates.ExecuteTemplate(w, name, data)
	})
}

// GreetingProps are the inputs of Greeting.
type GreetingProps struct {
	Name string
}

// Greeting greets a user by name.
func Greeting(props GreetingProps) gate.Node {
	return Template("greeting", props)
}

// AccountProps are the inputs of Account.
type AccountProps struct {
	ID    string
	Email string
}

// Account shows the signed-in user's details and a logout button.
func Account(props AccountProps) gate.Node {
	return Template("account", props)
}

// Login links to the provider's login page.
func Login(url string) gate.Node {
	if url == "" {
		return gate.Empty
	}
	return Template("login", struct{ URL string }{URL: url})
}

// Page renders body inside the layout and writes it as an HTML response.
// Output is buffered so that a failing component does not leave a partial
// page behind.
func Page(w http.ResponseWriter, r *http.Request, title string, body gate.Node) error {
	var inner bytes.Buffer
	if !gate.IsEmpty(body) {
		if err := body.Render(r.Context(), &inner); err != nil {
			return err
		}
	}
	var out bytes.Buffer
	err := templates.ExecuteTemplate(&out, "layout", struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(inner.String())})
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(out.Bytes())
	return err
}
