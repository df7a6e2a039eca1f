package email

import (
	"bytes"
	"fmt"
	htemplate "html/template"
)

// Templates mínimos por defecto. Una instalación puede reemplazar el
// Sender completo si necesita branding.

var codeHTML = htemplate.Must(htemplate.New("code").Parse(`
<p>Hola{{if .Name}} {{.Name}}{{end}},</p>
<p>Tu código de {{.Reason}} es:</p>
<p style="font-size:24px;font-weight:bold;letter-spacing:4px">{{.Code}}</p>
<p>Vence en {{.TTLMinutes}} minutos. Si no fuiste vos, ignorá este mensaje.</p>
`))

// CodeEmailInput parametriza el email de one-time code.
type CodeEmailInput struct {
	Name       string
	Code       string
	Reason     string // "verificación", "inicio de sesión", "restablecimiento"
	TTLMinutes int
}

// BuildCodeEmail arma el Message para un one-time code.
func BuildCodeEmail(to string, in CodeEmailInput) (Message, error) {
	var buf bytes.Buffer
	if err := codeHTML.Execute(&buf, in); err != nil {
		return Message{}, fmt.Errorf("email: render template: %w", err)
	}
	return Message{
		To:       to,
		Subject:  fmt.Sprintf("Tu código de %s", in.Reason),
		HTMLBody: buf.String(),
		TextBody: fmt.Sprintf("Tu código de %s es %s. Vence en %d minutos.", in.Reason, in.Code, in.TTLMinutes),
	}, nil
}
