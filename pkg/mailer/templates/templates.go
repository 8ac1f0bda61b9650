package templates

import (
	"bytes"
	"fmt"
	"html/template"
)

const welcomeHTML = `<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Welcome{{if .Name}}, {{.Name}}{{end}}!</h2>
    <p>Your account{{if .CompanyName}} for <strong>{{.CompanyName}}</strong>{{end}} has been created.</p>
    <p>You can now sign in with <strong>{{.Email}}</strong>.</p>
    <p style="color:#888;font-size:12px;">If you did not create this account, please contact support.</p>
  </body>
</html>`

var templates = map[string]*template.Template{
	"welcome": template.Must(template.New("welcome").Parse(welcomeHTML)),
}

// RenderHTML renders a named template with the given data.
func RenderHTML(name string, data map[string]any) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Subject returns the subject line for a named template.
func Subject(name string) string {
	switch name {
	case "welcome":
		return "Welcome aboard"
	default:
		return "Notification"
	}
}
