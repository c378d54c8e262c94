// Package notify delivers qualification outcomes to staff and clients.
//
// This file implements the SMTP email channel.
package notify

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dreampastry/qualibot/internal/models"
	"github.com/dreampastry/qualibot/internal/util"
	"gopkg.in/gomail.v2"
)

// Opts holds configuration options for the email sender.
type Opts struct {
	Host      string
	Port      int
	User      string
	Password  string
	TeamEmail string
}

// Option defines a configuration option for the email sender.
type Option func(*Opts)

// WithHost sets the SMTP server host.
func WithHost(host string) Option {
	return func(o *Opts) { o.Host = host }
}

// WithPort sets the SMTP server port.
func WithPort(port int) Option {
	return func(o *Opts) { o.Port = port }
}

// WithCredentials sets the SMTP user and password.
func WithCredentials(user, password string) Option {
	return func(o *Opts) { o.User = user; o.Password = password }
}

// WithTeamEmail sets the staff inbox outcome notifications go to.
func WithTeamEmail(email string) Option {
	return func(o *Opts) { o.TeamEmail = email }
}

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	dialer    *gomail.Dialer
	from      string
	teamEmail string
}

// NewEmailSender creates an SMTP sender, falling back to SMTP_* environment
// variables for unset options.
func NewEmailSender(opts ...Option) (*EmailSender, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" {
		cfg.Host = os.Getenv("SMTP_HOST")
	}
	if cfg.Port == 0 {
		cfg.Port = util.ParseIntEnv("SMTP_PORT", 587)
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("SMTP_USER")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("SMTP_PASSWORD")
	}
	if cfg.TeamEmail == "" {
		cfg.TeamEmail = os.Getenv("TEAM_EMAIL")
	}
	slog.Debug("Email sender config loaded", "host_set", cfg.Host != "", "user_set", cfg.User != "", "team_set", cfg.TeamEmail != "")

	if cfg.Host == "" || cfg.User == "" {
		return nil, fmt.Errorf("SMTP host and user must be provided")
	}
	if cfg.TeamEmail == "" {
		return nil, fmt.Errorf("team email must be provided")
	}
	return &EmailSender{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:      cfg.User,
		teamEmail: cfg.TeamEmail,
	}, nil
}

// SendStaffEmail emails the team about a new registration request.
func (e *EmailSender) SendStaffEmail(profile models.ClientProfile, details string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.teamEmail)
	m.SetHeader("Subject", fmt.Sprintf("Nouvelle demande d'inscription - %s", profile.FullName()))
	m.SetBody("text/plain", staffEmailBody(profile, details))
	return e.dialer.DialAndSend(m)
}

// SendClientEmail emails the prospect their outcome. Returns an error when no
// client address is known.
func (e *EmailSender) SendClientEmail(profile models.ClientProfile, status models.QualificationStatus, details string) error {
	if profile.Email == "" {
		return fmt.Errorf("no client email address")
	}
	subject, body := clientEmail(profile, status, details)
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", profile.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return e.dialer.DialAndSend(m)
}

// staffEmailBody renders the team notification, parsing the formation, status
// and slot lines back out of the details block for the summary sections.
func staffEmailBody(profile models.ClientProfile, details string) string {
	course := "Non spécifiée"
	status := "Non évalué"
	slot := "Non précisé"
	for _, line := range strings.Split(details, "\n") {
		switch {
		case strings.HasPrefix(line, "Formation demandée:"):
			course = strings.TrimSpace(strings.TrimPrefix(line, "Formation demandée:"))
		case strings.HasPrefix(line, "Statut:"):
			status = strings.TrimSpace(strings.TrimPrefix(line, "Statut:"))
		case strings.HasPrefix(line, "CRÉNEAU:"):
			slot = strings.TrimSpace(strings.TrimPrefix(line, "CRÉNEAU:"))
		}
	}

	return fmt.Sprintf(`NOUVELLE DEMANDE D'INSCRIPTION À UNE FORMATION

Date et heure: %s

INFORMATIONS CLIENT:
- Nom: %s
- Prénom: %s
- Téléphone: %s
- Âge: %d
- Statut: %s
- CPF actif: %s
- Ville: %s
- Préférence: %s
- Budget: %d€

FORMATION CHOISIE:
%s

CRÉNEAU SÉLECTIONNÉ:
%s

STATUT DE QUALIFICATION:
%s

---
Cet email a été généré automatiquement par le système Dream Pastry.
Veuillez contacter le client dans les plus brefs délais.`,
		time.Now().Format("02/01/2006 15:04:05"),
		orUnset(profile.LastName), orUnset(profile.FirstName), orUnset(profile.Phone),
		profile.Age, orUnset(profile.Employment), ouiNon(profile.CPFActive),
		orUnset(profile.City), orUnset(profile.Modality), profile.Budget,
		course, slot, status)
}

// clientEmail picks the subject and body for the prospect's outcome email.
func clientEmail(profile models.ClientProfile, status models.QualificationStatus, details string) (string, string) {
	switch status {
	case models.StatusQualified:
		return "🎉 Félicitations ! Votre qualification Dream Pastry", fmt.Sprintf(`Bonjour %s,

🎉 **FÉLICITATIONS !**

Votre candidature pour nos formations Dream Pastry a été acceptée !

%s

📞 **Prochaines étapes :**
Notre équipe vous contactera dans les 24 heures pour :
• Finaliser votre inscription
• Vous expliquer les modalités de paiement
• Planifier votre formation
• Répondre à toutes vos questions

Nous avons hâte de vous accueillir dans notre école !

%s`, profile.FullName(), details, emailSignature)
	case models.StatusWaitlist:
		return "⏳ Votre candidature Dream Pastry - Liste d'attente", fmt.Sprintf(`Bonjour %s,

⏳ **VOTRE CANDIDATURE EST EN COURS D'ÉTUDE**

Votre profil nous intéresse ! Votre candidature est actuellement en liste d'attente.

%s

📞 **Prochaines étapes :**
Notre équipe vous contactera sous 48 heures pour :
• Étudier votre dossier plus en détail
• Vous proposer des alternatives si nécessaire
• Vous informer des prochaines sessions disponibles

Merci pour votre patience !

%s`, profile.FullName(), details, emailSignature)
	default:
		return "📋 Votre candidature Dream Pastry", fmt.Sprintf(`Bonjour %s,

📋 **VOTRE CANDIDATURE**

Merci pour votre intérêt pour nos formations Dream Pastry.

Après étude de votre dossier, votre profil ne correspond pas actuellement à nos critères d'admission.

📞 **Alternatives possibles :**
Notre équipe vous contactera pour :
• Vous proposer d'autres formations adaptées à votre profil
• Vous informer des prochaines sessions
• Vous conseiller sur les prérequis nécessaires

Nous restons à votre disposition !

%s`, profile.FullName(), emailSignature)
	}
}

const emailSignature = `Cordialement,
L'équipe Dream Pastry
📧 contact@dreampastry.fr
📞 01 23 45 67 89`

func orUnset(s string) string {
	if s == "" {
		return "Non renseigné"
	}
	return s
}

func ouiNon(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}
