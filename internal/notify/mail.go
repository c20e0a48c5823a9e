// Package notify mails a summary of batches that had failures.
package notify

import (
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/wneessen/go-mail"

	"almaconnector/internal/batch"
	"almaconnector/internal/config"
	"almaconnector/internal/logger"
)

const smtpTimeout = 30 * time.Second

// SendFunc delivers a composed message.
type SendFunc func(ctx context.Context, msg *mail.Msg) error

type Mailer struct {
	cfg  config.ErrorMailConfig
	send SendFunc
	log  logger.Logger
	now  func() time.Time
}

func NewMailer(cfg config.ErrorMailConfig, log logger.Logger) *Mailer {
	m := &Mailer{cfg: cfg, log: log, now: time.Now}
	m.send = m.dialAndSend
	return m
}

// WithSender replaces the SMTP transport.
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	m.send = send
	return m
}

// Record implements batch.Recorder. Results without failures are ignored.
func (m *Mailer) Record(ctx context.Context, res *batch.Result) error {
	if !res.HasFailures() || !m.cfg.Enabled() {
		return nil
	}

	msg, err := m.compose(res)
	if err != nil {
		return err
	}

	if err := m.send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send error mail: %w", err)
	}

	m.log.InfowCtx(ctx, "error mail sent", "run_id", res.RunID, "recipients", len(m.cfg.Recipients))
	return nil
}

// clientOptions uses STARTTLS when the server offers it and PLAIN auth
// only when a username is configured.
func (m *Mailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(smtpTimeout),
	}
	if m.cfg.SMTP.Port > 0 {
		opts = append(opts, mail.WithPort(m.cfg.SMTP.Port))
	}
	if m.cfg.SMTP.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.SMTP.Username),
			mail.WithPassword(m.cfg.SMTP.Password),
		)
	}
	return opts
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(m.cfg.SMTP.Host, m.clientOptions()...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

var bodyTemplate = template.Must(template.New("body").Parse(`Batch {{.Kind}} (run {{.RunID}}) finished with failures.

Task:      {{if .Task}}{{.Task}}{{else}}-{{end}}
Workflow:  {{if .Workflow}}{{.Workflow}}{{else}}-{{end}}
Processed: {{.Processed}}
Failed:    {{.Failed}}
Skipped:   {{.Skipped}}
{{- if .Aborted}}
Aborted:   {{.Aborted}}
{{- end}}
{{if .Failures}}
Failures:
{{range .Failures}}- {{.Item}} [{{.Code}}] {{.Message}}
{{end}}{{end}}`))

func (m *Mailer) compose(res *batch.Result) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.Sender); err != nil {
		return nil, fmt.Errorf("invalid error mail sender: %w", err)
	}
	if err := msg.To(m.cfg.Recipients...); err != nil {
		return nil, fmt.Errorf("invalid error mail recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("[alma] %s run %s: %d failed", res.Kind, res.RunID, res.Failed))
	msg.SetDateWithValue(m.now())
	msg.SetMessageID()
	if err := msg.SetBodyTextTemplate(bodyTemplate, res); err != nil {
		return nil, fmt.Errorf("failed to render error mail: %w", err)
	}
	return msg, nil
}
