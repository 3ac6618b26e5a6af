package mailer

import (
	"bytes"
	"html/template"
	"time"
)

const PasswordResetSubject = "Reset your password - Auth System"

var passwordResetTmpl = template.Must(template.New("reset").Parse(`<div style="max-width: 600px; margin: auto; font-family: Arial, sans-serif; color: #333; padding: 20px;">
  <h2 style="color: #1a73e8;">Auth System</h2>
  <p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
  <p>We received a request to reset your password. Click the button below to proceed:</p>
  <a href="{{.Link}}" style="display: inline-block; padding: 10px 20px; background-color: #1a73e8; color: #fff; text-decoration: none; border-radius: 4px; margin: 20px 0;">Reset Password</a>
  <p>If you didn't request this, you can safely ignore this email.</p>
  <p style="font-size: 14px; color: #888;">This link will expire in {{.ExpiresIn}} minutes.</p>
  <hr style="margin: 30px 0;" />
  <p style="font-size: 12px; color: #aaa;">&copy; {{.Year}} Auth System. All rights reserved.</p>
</div>
`))

// PasswordResetEmail renders the reset message body.
func PasswordResetEmail(name, link string, ttl time.Duration, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := passwordResetTmpl.Execute(&buf, map[string]any{
		"Name":      name,
		"Link":      template.URL(link),
		"ExpiresIn": int(ttl.Minutes()),
		"Year":      now.Year(),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
