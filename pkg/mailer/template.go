package mailer

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/Masterminds/sprig/v3"
)

const verificationTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a2e;">
  <h2>Verify your {{ .AppName | title }} email</h2>
  <p>Hi {{ .Username }},</p>
  <p>Your verification code is:</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{ .Code }}</p>
  <p>The code expires at {{ .ExpiresAt | date "15:04 MST" }} ({{ .TTLMinutes }} minutes from issuance).</p>
  <p>If you did not request this, you can ignore this message.</p>
</body>
</html>`

var verificationTmpl = template.Must(
	template.New("verification").Funcs(sprig.FuncMap()).Parse(verificationTemplate),
)

// VerificationEmailData is the template payload for verification mail.
type VerificationEmailData struct {
	AppName    string
	Username   string
	Code       string
	ExpiresAt  time.Time
	TTLMinutes int
}

// RenderVerificationEmail produces the HTML body for a verification code.
func RenderVerificationEmail(data VerificationEmailData) (string, error) {
	var b strings.Builder
	if err := verificationTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render verification email: %w", err)
	}
	return b.String(), nil
}
