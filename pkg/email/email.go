package email

import (
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

// LoadSMTPConfigFromEnv loads SMTP configuration from environment variables
func LoadSMTPConfigFromEnv() (*SMTPConfig, error) {
	host := os.Getenv("SMTP_HOST")
	portStr := os.Getenv("SMTP_PORT")
	sender := os.Getenv("SMTP_SENDER_EMAIL")

	if host == "" || portStr == "" || sender == "" {
		return nil, fmt.Errorf("SMTP_HOST, SMTP_PORT, and SMTP_SENDER_EMAIL must be set")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %v", err)
	}

	return &SMTPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"), // may be empty for relay servers
		Password: os.Getenv("SMTP_PASSWORD"),
		Sender:   sender,
	}, nil
}

// ComplaintNotice is the content of one complaint notification mail.
type ComplaintNotice struct {
	RecipientName string
	Title         string
	Message       string
	ComplaintID   string
	Link          string
}

// RenderNotice renders the HTML body of a complaint notification.
func RenderNotice(n ComplaintNotice) string {
	name := n.RecipientName
	if name == "" {
		name = "there"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<html>\n<body>\n    <p>Hello %s,</p>\n", html.EscapeString(name))
	fmt.Fprintf(&b, "    <p>%s</p>\n", html.EscapeString(n.Message))
	fmt.Fprintf(&b, "    <p>Complaint reference: <b>%s</b></p>\n", html.EscapeString(n.ComplaintID))
	if n.Link != "" {
		link := html.EscapeString(n.Link)
		fmt.Fprintf(&b, "    <p><a href=\"%s\">%s</a></p>\n", link, link)
	}
	b.WriteString("    <p><small>(This is an automated message, please do not reply.)</small></p>\n</body>\n</html>\n")
	return b.String()
}

// NewMessage assembles an HTML mail from sender to toEmail.
func NewMessage(sender, toEmail, subject, htmlBody string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", sender)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	return m
}

// SendComplaintNotice mails n to toEmail using config. Relays without a
// username are used unauthenticated.
func SendComplaintNotice(config *SMTPConfig, toEmail string, n ComplaintNotice) error {
	m := NewMessage(config.Sender, toEmail, "[Facility Desk] "+n.Title, RenderNotice(n))
	d := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
