package email

import (
	"fmt"
	"log"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/shippingcomps/backend/pkg/models"
)

// Service handles email sending
type Service struct {
	fromEmail   string
	fromName    string
	frontendURL string
	sendGridKey string
	useSendGrid bool
}

// NewService creates a new email service
// If sendGridAPIKey is provided, emails will be sent via SendGrid
// Otherwise, emails will be logged to console (development mode)
func NewService(fromEmail, fromName, frontendURL, sendGridAPIKey string) *Service {
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Printf("✅ Email service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Email service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		frontendURL: frontendURL,
		sendGridKey: sendGridAPIKey,
		useSendGrid: useSendGrid,
	}
}

// SendAnalysisReport sends a recurring competitive shipping report
func (s *Service) SendAnalysisReport(toEmail, url string, record *models.AnalysisRecord) error {
	subject := fmt.Sprintf("Your shipping report for %s", url)

	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Competitive Shipping Report</h2>
			<p>Here is your scheduled shipping analysis for <a href="%s">%s</a>.</p>
			<p><strong>Average competitor free-shipping threshold: $%.2f</strong></p>
			%s
			<h3>Recommendations</h3>
			<p>%s</p>
			<p><a href="%s/analysis/%s" style="background-color: #4CAF50; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">View Full Report</a></p>
			<p>Thanks,<br>The Shipping Comps Team</p>
		</body>
		</html>
	`, url, url, record.AverageThreshold, competitorTable(record.Competitors),
		strings.ReplaceAll(record.Recommendations, "\n", "<br>"), s.frontendURL, record.ID)

	plainText := fmt.Sprintf(`
Your scheduled shipping analysis for %s is ready.

Average competitor free-shipping threshold: $%.2f

View the full report: %s/analysis/%s

Thanks,
The Shipping Comps Team
	`, url, record.AverageThreshold, s.frontendURL, record.ID)

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, subject, body, plainText)
	}

	// Development mode: log to console
	return s.logEmailToConsole(toEmail, subject, fmt.Sprintf("%s/analysis/%s", s.frontendURL, record.ID))
}

// competitorTable renders the competitor thresholds as an HTML table
func competitorTable(competitors []models.CompetitorResult) string {
	if len(competitors) == 0 {
		return "<p>No competitors could be analyzed this run.</p>"
	}

	var b strings.Builder
	b.WriteString(`<table border="1" cellpadding="6" cellspacing="0">`)
	b.WriteString("<tr><th>Competitor</th><th>Website</th><th>Free Shipping Threshold</th></tr>")
	for _, c := range competitors {
		threshold := "Not specified"
		if c.Shipping.Threshold != nil {
			if *c.Shipping.Threshold == 0 {
				threshold = "Free on all orders"
			} else {
				threshold = fmt.Sprintf("$%.2f", *c.Shipping.Threshold)
			}
		}
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>", c.Name, c.Website, threshold)
	}
	b.WriteString("</table>")
	return b.String()
}

func (s *Service) sendViaSendGrid(toEmail, subject, htmlBody, plainTextBody string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toEmail, toEmail)

	message := mail.NewSingleEmail(from, subject, to, plainTextBody, htmlBody)

	client := sendgrid.NewSendClient(s.sendGridKey)
	response, err := client.Send(message)

	if err != nil {
		log.Printf("❌ SendGrid error: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		log.Printf("❌ SendGrid returned error status %d: %s", response.StatusCode, response.Body)
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	log.Printf("✅ Email sent successfully to %s (SendGrid status: %d)", toEmail, response.StatusCode)
	return nil
}

// logEmailToConsole logs email details to console (development mode)
func (s *Service) logEmailToConsole(toEmail, subject, actionURL string) error {
	log.Printf("📧 [EMAIL] %s", subject)
	log.Printf("   To: %s", toEmail)
	log.Printf("   From: %s <%s>", s.fromName, s.fromEmail)
	log.Printf("   Report URL: %s", actionURL)
	log.Printf("   ⚠️  Email NOT sent (development mode)")
	return nil
}
