package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/logging"
)

// GmailSender sends mail through the Gmail API with a stored OAuth token.
// Per-request credentials are ignored; the token decides the account.
type GmailSender struct {
	service *gmail.Service
	userID  string
}

// NewGmailSender wraps an authenticated Gmail service
func NewGmailSender(service *gmail.Service) *GmailSender {
	return &GmailSender{service: service, userID: "me"}
}

// NewGmailSenderFromFiles builds a sender from an OAuth client credentials
// file (as downloaded from the Google console) and a saved token file.
func NewGmailSenderFromFiles(ctx context.Context, credentialsFile, tokenFile string) (*GmailSender, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read credentials: %v", core.ErrMailNotConfigured, err)
	}
	oauthCfg, err := google.ConfigFromJSON(creds, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse credentials: %v", core.ErrMailNotConfigured, err)
	}

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read token: %v", core.ErrMailNotConfigured, err)
	}
	token, err := TokenFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse token: %v", core.ErrMailNotConfigured, err)
	}

	service, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGmailSender(service), nil
}

// TokenFromJSON deserializes a token from JSON
func TokenFromJSON(data []byte) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// SendMail implements the router's mail collaborator
func (g *GmailSender) SendMail(ctx context.Context, to, subject, body string, creds core.Credentials) error {
	return g.Send(ctx, &Message{To: []string{to}, Subject: subject, Body: body}, creds)
}

// Send sends a message as the token's account
func (g *GmailSender) Send(ctx context.Context, msg *Message, _ core.Credentials) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	var raw strings.Builder
	raw.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	raw.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	for key, value := range msg.Headers {
		raw.WriteString(fmt.Sprintf("%s: %s\r\n", key, value))
	}
	raw.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	raw.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	raw.WriteString("\r\n")
	raw.WriteString(msg.Body)

	sent, err := g.service.Users.Messages.Send(g.userID, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw.String())),
	}).Context(ctx).Do()
	if err != nil {
		logging.Warn("gmail send failed: %v", err)
		return fmt.Errorf("%w: %v", core.ErrMailFailed, err)
	}

	logging.WithField("message_id", sent.Id).Debug("gmail message sent")
	return nil
}
