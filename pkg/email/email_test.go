package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/email"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  email.SendEmailParams
		wantErr bool
	}{
		{
			name:   "valid",
			params: email.SendEmailParams{SendTo: "user@example.com", Subject: "Hi", BodyHTML: "<p>hi</p>"},
		},
		{
			name:    "bad recipient",
			params:  email.SendEmailParams{SendTo: "nope", Subject: "Hi", BodyHTML: "<p>hi</p>"},
			wantErr: true,
		},
		{
			name:    "display name form is rejected",
			params:  email.SendEmailParams{SendTo: "User <user@example.com>", Subject: "Hi", BodyHTML: "<p>hi</p>"},
			wantErr: true,
		},
		{
			name:    "missing subject and body",
			params:  email.SendEmailParams{SendTo: "user@example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.params.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, email.ErrInvalidParams)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewPostmarkClient(t *testing.T) {
	t.Parallel()

	valid := email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "sender@example.com",
		SupportEmail:         "support@example.com",
	}

	client, err := email.NewPostmarkClient(valid)
	require.NoError(t, err)
	assert.NotNil(t, client)

	missingToken := valid
	missingToken.PostmarkServerToken = ""
	_, err = email.NewPostmarkClient(missingToken)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	badSender := valid
	badSender.SenderEmail = "invalid"
	_, err = email.NewPostmarkClient(badSender)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir, logger.Discard())

	params, err := email.PaymentFailed("driver@example.com", email.PaymentFailedData{
		ProductName: "My Mechanic",
		Amount:      "£4.99",
		ManageURL:   "https://mymechanic.app/account",
	})
	require.NoError(t, err)
	require.NoError(t, sender.SendEmail(context.Background(), params))

	htmlFiles, err := filepath.Glob(filepath.Join(dir, "*.html"))
	require.NoError(t, err)
	require.Len(t, htmlFiles, 1)
	assert.Contains(t, filepath.Base(htmlFiles[0]), email.TagPaymentFailed)

	body, err := os.ReadFile(htmlFiles[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "£4.99")
	assert.Contains(t, string(body), "https://mymechanic.app/account")

	raw, err := os.ReadFile(strings.TrimSuffix(htmlFiles[0], ".html") + ".json")
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "driver@example.com", meta["send_to"])
	assert.Equal(t, email.TagPaymentFailed, meta["tag"])

	assert.ErrorIs(t, sender.SendEmail(context.Background(), email.SendEmailParams{}), email.ErrInvalidParams)
}
