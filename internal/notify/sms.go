// Package notify delivers qualification outcomes to staff and clients.
//
// This file implements the optional SMS channel on the Twilio REST API.
package notify

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dreampastry/qualibot/internal/models"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSOpts holds configuration options for the Twilio SMS client.
type SMSOpts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// SMSOption defines a configuration option for the Twilio SMS client.
type SMSOption func(*SMSOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) SMSOption {
	return func(o *SMSOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) SMSOption {
	return func(o *SMSOpts) { o.AuthToken = token }
}

// WithFromNumber sets the sender phone number.
func WithFromNumber(from string) SMSOption {
	return func(o *SMSOpts) { o.FromNumber = from }
}

// SMSSender delivers short outcome notifications over Twilio SMS.
type SMSSender struct {
	client *twilio.RestClient
	from   string
}

// NewSMSSender creates a Twilio SMS sender, falling back to TWILIO_*
// environment variables for unset options.
func NewSMSSender(opts ...SMSOption) (*SMSSender, error) {
	var cfg SMSOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio SMS config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSSender{client: client, from: cfg.FromNumber}, nil
}

// SendOutcomeSMS texts the prospect a short outcome summary. Returns an error
// when no client phone number is known.
func (s *SMSSender) SendOutcomeSMS(profile models.ClientProfile, status models.QualificationStatus) error {
	if profile.Phone == "" {
		return fmt.Errorf("no client phone number")
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(profile.Phone)
	params.SetFrom(s.from)
	params.SetBody(smsBody(profile, status))
	_, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", profile.Phone, err)
	}
	return nil
}

func smsBody(profile models.ClientProfile, status models.QualificationStatus) string {
	switch status {
	case models.StatusQualified:
		return fmt.Sprintf("Dream Pastry: félicitations %s, votre place est réservée ! Notre équipe vous contacte sous 24h.", profile.FirstName)
	case models.StatusWaitlist:
		return fmt.Sprintf("Dream Pastry: bonjour %s, votre candidature est en liste d'attente. Réponse sous 48h.", profile.FirstName)
	default:
		return fmt.Sprintf("Dream Pastry: bonjour %s, votre dossier a bien été reçu. Notre équipe revient vers vous rapidement.", profile.FirstName)
	}
}
