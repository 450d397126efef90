package services

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"

	model "github.com/docupilot/docupilot/models"
)

// StepNotification is the log name of the notification step.
const StepNotification = "notification"

// notifyActions are the decisions that produce a notification; anything else
// is a no-op.
var notifyActions = map[model.WorkflowAction]bool{
	model.ActionFlagForReview: true,
	model.ActionSendEmail:     true,
}

// NotifyService sends decision notifications over SMTP. Failures here are
// never fatal to a processing run.
type NotifyService struct{}

func NewNotifyService() *NotifyService {
	return &NotifyService{}
}

// Notify emails the recipient when the action warrants it. Returns a
// NotificationError on failure; callers log it as a failed step and move on.
func (s *NotifyService) Notify(ctx context.Context, doc *model.Document, action model.WorkflowAction, recipient string) error {
	if !notifyActions[action] {
		log.Printf("[Notify] action %s needs no notification for document %s", action, doc.ID)
		return nil
	}
	if recipient == "" {
		return NewStepError(StepNotification, KindNotificationError, "no recipient resolved", nil)
	}

	from := os.Getenv("SMTP_FROM")
	password := os.Getenv("SMTP_PASSWORD")
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")
	if smtpHost == "" {
		smtpHost = "smtp.gmail.com"
	}
	if smtpPort == "" {
		smtpPort = "587"
	}
	if from == "" {
		return NewStepError(StepNotification, KindNotificationError, "SMTP_FROM is not configured", nil)
	}

	subject := fmt.Sprintf("Action Required: Review %s %s", strings.Title(string(doc.DocumentType)), doc.ID)
	body := fmt.Sprintf(`
	<html>
	<body>
		<h2>Document Processing Complete</h2>
		<p>Dear User,</p>
		<p>Your document needs attention:</p>
		<ul>
			<li><strong>Document:</strong> %s</li>
			<li><strong>Type:</strong> %s</li>
			<li><strong>Decision:</strong> %s</li>
		</ul>
		<p>Please review it and take appropriate action.</p>
		<p>Best regards,<br>Document Intake</p>
	</body>
	</html>
`, doc.OriginalFilename, doc.DocumentType, action)

	message := []byte("Subject: " + subject + "\r\n" +
		"From: " + from + "\r\n" +
		"To: " + recipient + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
		body)

	auth := smtp.PlainAuth("", from, password, smtpHost)
	if err := smtp.SendMail(smtpHost+":"+smtpPort, auth, from, []string{recipient}, message); err != nil {
		log.Printf("[Notify] Error sending email for document %s: %v", doc.ID, err)
		return NewStepError(StepNotification, KindNotificationError, fmt.Sprintf("failed to email %s", recipient), err)
	}

	log.Printf("[Notify] Email sent successfully to %s for document %s", recipient, doc.ID)
	return nil
}
