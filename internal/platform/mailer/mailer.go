package mailer

// Service delivers the transactional emails the auth flows rely on.
// Implementations must be safe for concurrent use.
type Service interface {
	SendWelcome(toEmail, toName, accountURL string) error
	SendPasswordReset(toEmail, toName, resetURL string) error
}
