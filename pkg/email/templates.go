package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// TagPaymentFailed is the Postmark tag of the payment failure notice.
const TagPaymentFailed = "payment-failed"

var paymentFailedTmpl = template.Must(template.New("payment_failed").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h2>We couldn't process your payment</h2>
  <p>Hi,</p>
  <p>Your latest payment{{if .Amount}} of <strong>{{.Amount}}</strong>{{end}} for {{.ProductName}} did not go through.
  Your access is paused until the payment method is updated.</p>
  {{if .ManageURL}}<p><a href="{{.ManageURL}}">Update your payment details</a></p>{{end}}
  <p>If you think this is a mistake, just reply to this email.</p>
</body>
</html>`))

// PaymentFailedData fills the payment failure notice.
type PaymentFailedData struct {
	ProductName string
	Amount      string // formatted, e.g. "£4.99"; optional
	ManageURL   string // optional
}

// PaymentFailed renders the payment failure notice for to.
func PaymentFailed(to string, data PaymentFailedData) (SendEmailParams, error) {
	var buf bytes.Buffer
	if err := paymentFailedTmpl.Execute(&buf, data); err != nil {
		return SendEmailParams{}, fmt.Errorf("render payment failed email: %w", err)
	}
	return SendEmailParams{
		SendTo:   to,
		Subject:  "Action required: your " + data.ProductName + " payment failed",
		BodyHTML: buf.String(),
		Tag:      TagPaymentFailed,
	}, nil
}
