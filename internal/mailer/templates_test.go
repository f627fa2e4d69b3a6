package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	body, err := render(TemplateEmailVerification, map[string]any{
		"Name":            "Jane",
		"VerificationURL": "http://localhost:3000/verify-email/tok",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Jane")
	assert.Contains(t, body, "http://localhost:3000/verify-email/tok")

	body, err = render(TemplateOrderConfirmation, map[string]any{
		"Name": "Jane", "OrderNumber": "ORD-1-0001", "Total": "59.97",
		"OrderURL": "http://localhost:3000/orders/abc",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "ORD-1-0001")
	assert.Contains(t, body, "59.97")
}

func TestRender_EscapesHTML(t *testing.T) {
	body, err := render(TemplatePasswordReset, map[string]any{
		"Name":     "<script>alert(1)</script>",
		"ResetURL": "http://localhost:3000/reset-password/tok",
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := render(Template("no_such_template"), nil)
	assert.Error(t, err)
}
