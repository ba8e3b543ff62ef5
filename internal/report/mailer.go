package report

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/wneessen/go-mail"
	"golang.org/x/oauth2"
)

const (
	smtpHost = "smtp.gmail.com"
	smtpPort = 587
)

type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers one email and returns its Message-ID.
type Mailer interface {
	Send(ctx context.Context, e Email) (string, error)
}

// MailerFactory builds a Mailer for resolved credentials.
type MailerFactory func(*Credentials) (Mailer, error)

// SMTPMailer sends through Gmail's submission port with STARTTLS.
type SMTPMailer struct {
	creds  *Credentials
	host   string
	port   int
	tokens oauth2.TokenSource
}

func NewSMTPMailer(creds *Credentials) (Mailer, error) {
	m := &SMTPMailer{creds: creds, host: smtpHost, port: smtpPort}
	if creds.Method == AuthXOAUTH2 {
		m.tokens = cachedTokenSource(creds)
	}
	return m, nil
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) (string, error) {
	msg := mail.NewMsg()
	if err := msg.From(e.From); err != nil {
		return "", fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(e.To); err != nil {
		return "", fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(e.Subject)
	msg.SetBodyString(mail.TypeTextPlain, e.Body)
	msg.SetDate()
	id := ulid.Make().String() + "@campus-marketplace"
	msg.SetMessageIDWithValue(id)

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithUsername(m.creds.User),
	}
	switch m.creds.Method {
	case AuthXOAUTH2:
		tok, err := m.tokens.Token()
		if err != nil {
			return "", fmt.Errorf("refresh Gmail access token: %w", err)
		}
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthXOAUTH2), mail.WithPassword(tok.AccessToken))
	default:
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithPassword(m.creds.Password))
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return "", fmt.Errorf("create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", err
	}
	return "<" + id + ">", nil
}

var (
	tokenMu     sync.Mutex
	tokenSource = map[string]oauth2.TokenSource{}
)

// cachedTokenSource shares one refreshing token source per client and refresh
// token, so access tokens are reused until they expire.
func cachedTokenSource(c *Credentials) oauth2.TokenSource {
	key := c.OAuth.ClientID + "|" + c.RefreshToken
	tokenMu.Lock()
	defer tokenMu.Unlock()
	if ts, ok := tokenSource[key]; ok {
		return ts
	}
	ts := c.OAuth.TokenSource(context.Background(), &oauth2.Token{RefreshToken: c.RefreshToken})
	tokenSource[key] = ts
	return ts
}
