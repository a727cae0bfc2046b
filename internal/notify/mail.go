package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

// Sender delivers prepared messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTPSender returns a gomail dialer for cfg.
func NewSMTPSender(cfg SMTPConfig) *gomail.Dialer {
	return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
}

var orderEmail = template.Must(template.New("order").Funcs(template.FuncMap{
	"brl":     FormatBRL,
	"status":  StatusLabel,
	"payment": PaymentLabel,
}).Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<body style="font-family: Arial, sans-serif; color: #222;">
<h2>Olá, {{.Summary.CustomerName}}!</h2>
<p>Seu pedido <strong>#{{.Summary.Reference}}</strong> está com status <strong>{{status .Summary.Status}}</strong>.</p>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><th align="left">Produto</th><th>Qtd.</th><th align="right">Preço</th><th align="right">Total</th></tr>
{{range .Summary.Items}}<tr><td>{{.Name}}{{if .Color}} ({{.Color}}){{end}}</td><td align="center">{{.Quantity}}</td><td align="right">{{brl .UnitPrice}}</td><td align="right">{{brl .LineTotal}}</td></tr>
{{end}}</table>
<p>Subtotal: {{brl .Summary.Subtotal}}<br>
{{if .Summary.Discount.IsPositive}}Desconto: -{{brl .Summary.Discount}}<br>
{{end}}Frete: {{brl .Summary.Shipping}}<br>
{{if .Summary.Fee.IsPositive}}Taxa de pagamento: {{brl .Summary.Fee}}<br>
{{end}}<strong>Total: {{brl .Summary.Total}}</strong></p>
<p>Pagamento: {{payment .Summary.PaymentMethod}}{{if gt .Summary.Installments 1}} em {{.Summary.Installments}}x{{end}}</p>
{{if .Summary.Address}}<p>Entrega em: {{.Summary.Address}}</p>
{{else}}<p>Retirada na loja.</p>
{{end}}{{if .Summary.TrackingCode}}<p>Código de rastreio: <strong>{{.Summary.TrackingCode}}</strong></p>
{{end}}{{if .ContactURL}}<p>Dúvidas? <a href="{{.ContactURL}}">Fale com a gente pelo WhatsApp</a>.</p>
{{end}}</body>
</html>
`))

type emailData struct {
	Summary    Summary
	ContactURL string
}

func subject(s Summary) string {
	return fmt.Sprintf("Pedido #%s - %s", s.Reference, StatusLabel(s.Status))
}

func renderOrderEmail(s Summary, contactURL string) (string, error) {
	var buf bytes.Buffer
	if err := orderEmail.Execute(&buf, emailData{Summary: s, ContactURL: contactURL}); err != nil {
		return "", fmt.Errorf("render order email: %w", err)
	}
	return buf.String(), nil
}

func buildMessage(from string, s Summary, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetAddressHeader("To", s.CustomerEmail, s.CustomerName)
	m.SetHeader("Subject", subject(s))
	m.SetBody("text/html", body)
	return m
}
