// Package mail sends transactional email: password reset codes and
// contact form notifications.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
)

// Message is one outgoing email with an HTML body.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var templates = template.Must(template.New("").Parse(`
{{define "otp"}}<h2>Your code: {{.Code}}</h2>
<p>Use it to reset your library password. It is valid for {{.Minutes}} minutes.</p>
<p>If you did not ask for a reset you can ignore this email.</p>{{end}}
{{define "contact"}}<h3>New contact message</h3>
<p><b>Name:</b> {{.Name}}</p>
<p><b>Email:</b> {{.Email}}</p>
<p><b>Subject:</b> {{.Subject}}</p>
<p><b>Message:</b><br>{{.Message}}</p>{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s email: %w", name, err)
	}
	return buf.String(), nil
}

// OTPMessage builds the password reset email carrying code.
func OTPMessage(to, code string, validMinutes int, resend bool) (Message, error) {
	body, err := render("otp", map[string]any{"Code": code, "Minutes": validMinutes})
	if err != nil {
		return Message{}, err
	}
	subject := "Password reset code"
	if resend {
		subject = "Your new password reset code"
	}
	return Message{To: to, Subject: subject, HTML: body}, nil
}

// ContactMessage builds the notification sent to the library inbox when
// someone uses the contact form.
func ContactMessage(inbox, name, email, subject, message string) (Message, error) {
	body, err := render("contact", map[string]any{
		"Name": name, "Email": email, "Subject": subject, "Message": message,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: inbox, Subject: "Contact form: " + subject, HTML: body}, nil
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP server is configured.
type LogMailer struct{}

// Send logs the message.
func (LogMailer) Send(_ context.Context, msg Message) error {
	slog.Info("email not sent, smtp not configured", "to", msg.To, "subject", msg.Subject, "body", msg.HTML)
	return nil
}

// Recorder keeps sent messages in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

// Fail makes subsequent sends return err. A nil err restores delivery.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Send records msg, or returns the error set by Fail.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Last returns the most recent message and whether there is one.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}
