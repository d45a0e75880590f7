package mail

import (
	"fmt"

	"github.com/lapublica/platform-api/internal/config"
	"github.com/lapublica/platform-api/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender delivers transactional mail over SMTP. All sends are best-effort:
// callers log failures and move on, they never fail the triggering request.
type Sender struct {
	dialer  *gomail.Dialer
	from    string
	enabled bool
	logger  *zap.Logger
}

// NewSender creates a new mail sender
func NewSender(cfg *config.MailConfig, logger *zap.Logger) *Sender {
	return &Sender{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:    cfg.From,
		enabled: cfg.Enabled,
		logger:  logger,
	}
}

// Send delivers a single mail message
func (s *Sender) Send(to, subject, htmlBody string) error {
	if !s.enabled {
		s.logger.Debug("mail disabled, skipping send",
			zap.String("to", to),
			zap.String("subject", subject),
		)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// SendRedemptionReceipt mails the coupon holder after a successful redemption
func (s *Sender) SendRedemptionReceipt(to string, coupon *domain.Coupon, redemption *domain.Redemption) error {
	offerTitle := ""
	if coupon.Offer != nil {
		offerTitle = coupon.Offer.Title
	}

	subject := "Your coupon has been redeemed"
	body := fmt.Sprintf(
		"<p>Your coupon <strong>%s</strong> for <strong>%s</strong> was redeemed on %s.</p>"+
			"<p>Final price: %.2f (you saved %.2f).</p>",
		coupon.Code,
		offerTitle,
		redemption.RedeemedAt.Format("2006-01-02 15:04"),
		redemption.FinalPrice,
		redemption.DiscountAmount,
	)

	return s.Send(to, subject, body)
}

// SendCouponClaimed mails the user their freshly claimed coupon code
func (s *Sender) SendCouponClaimed(to string, coupon *domain.Coupon) error {
	offerTitle := ""
	if coupon.Offer != nil {
		offerTitle = coupon.Offer.Title
	}

	subject := "Your coupon code"
	body := fmt.Sprintf(
		"<p>Here is your coupon for <strong>%s</strong>:</p>"+
			"<p style=\"font-size:1.4em\"><strong>%s</strong></p>"+
			"<p>Valid until %s. Show this code at redemption.</p>",
		offerTitle,
		coupon.Code,
		coupon.ExpiresAt.Format("2006-01-02"),
	)

	return s.Send(to, subject, body)
}
