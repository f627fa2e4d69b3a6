package mailer

import (
	"fmt"
	"html/template"
	"strings"
)

const layout = `<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background: #007bff; color: white; padding: 20px; text-align: center; }
  .content { padding: 30px 20px; }
  .button { display: inline-block; background: #007bff; color: white;
            padding: 12px 30px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
  .footer { background: #f8f9fa; padding: 20px; text-align: center; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>Storefront</h1></div>
  <div class="content">{{block "content" .}}{{end}}</div>
  <div class="footer">If you did not expect this email you can safely ignore it.</div>
</div>
</body>
</html>`

var bodies = map[Template]string{
	TemplateEmailVerification: `{{define "content"}}
<h2>Verify Your Email Address</h2>
<p>Hi {{.Name}},</p>
<p>Thank you for registering! Please click the button below to verify your email address:</p>
<a href="{{.VerificationURL}}" class="button">Verify Email</a>
{{end}}`,

	TemplatePasswordReset: `{{define "content"}}
<h2>Password Reset Request</h2>
<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. The link below is valid for a short time:</p>
<a href="{{.ResetURL}}" class="button">Reset Password</a>
<p>If you did not request a reset, no action is needed.</p>
{{end}}`,

	TemplateOrderConfirmation: `{{define "content"}}
<h2>Order Confirmed</h2>
<p>Hi {{.Name}},</p>
<p>Your order <strong>{{.OrderNumber}}</strong> has been placed. Total: {{.Total}}.</p>
<a href="{{.OrderURL}}" class="button">View Order</a>
{{end}}`,

	TemplateOrderStatusUpdate: `{{define "content"}}
<h2>Order Update</h2>
<p>Hi {{.Name}},</p>
<p>Your order <strong>{{.OrderNumber}}</strong> is now <strong>{{.Status}}</strong>.</p>
<a href="{{.OrderURL}}" class="button">Track Order</a>
{{end}}`,
}

var templates = func() map[Template]*template.Template {
	parsed := make(map[Template]*template.Template, len(bodies))
	for name, body := range bodies {
		parsed[name] = template.Must(
			template.Must(template.New(string(name)).Parse(layout)).Parse(body))
	}
	return parsed
}()

func render(name Template, data map[string]any) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
