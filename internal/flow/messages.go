// Package flow implements the qualification conversation flow.
//
// This file composes every user-visible French message. No internal error
// text ever reaches the client; collaborator failures surface as generic
// retry or follow-up messages.
package flow

import (
	"fmt"
	"strings"

	"github.com/dreampastry/qualibot/internal/models"
)

// Re-prompt messages for the slot menu. The cursor does not move when these
// are returned.
const (
	slotRetryOutOfRange   = "Veuillez répondre par un numéro valide parmi les options listées, ou « aucun ». Réessayez."
	slotRetryNotANumber   = "Veuillez répondre par un numéro (ex: 1) ou « aucun ». Réessayez."
	storeUnavailableReply = "Erreur de connexion à la base de données. Veuillez réessayer plus tard."
)

// startMessage opens the qualification process with the first question.
func startMessage(first models.Question, total int) string {
	return fmt.Sprintf(`🎯 **PROCESSUS DE QUALIFICATION**

Merci pour votre intérêt ! Pour mieux vous orienter, nous allons vous poser quelques questions de qualification.

**Question 1/%d:** %s

Veuillez répondre à cette question pour continuer le processus.`, total, first.Prompt)
}

// nextQuestionMessage acknowledges an answer and asks question number num of total.
func nextQuestionMessage(num, total int, q models.Question) string {
	return fmt.Sprintf(`Merci pour votre réponse !

**Question %d/%d:** %s

Veuillez répondre pour continuer.`, num, total, q.Prompt)
}

// unavailableMessage is the terminal message when the chosen course is full
// or unknown, listing alternative courses with free seats.
func unavailableMessage(justification, course string, alternatives []models.Formation) string {
	var b strings.Builder
	b.WriteString(justification)
	b.WriteString("\n\n**FORMATION COMPLÈTE OU NON DISPONIBLE**\n\n")
	fmt.Fprintf(&b, "La formation \"%s\" n'est pas disponible actuellement.\n\n", course)
	b.WriteString("**FORMATIONS ALTERNATIVES DISPONIBLES:**\n")
	if len(alternatives) == 0 {
		b.WriteString("Aucune formation alternative disponible actuellement.\n")
	} else {
		for _, alt := range alternatives {
			fmt.Fprintf(&b, "• %s - %d places disponibles - %.0f€\n", alt.Name, alt.FreeSeats(), alt.Price)
		}
	}
	b.WriteString(`
**Veuillez choisir une autre formation ou contactez-nous pour être informé(e) des prochaines sessions.**

📧 **Votre demande a été transmise à notre équipe qui vous contactera pour vous proposer des alternatives.**`)
	return b.String()
}

// reservationConfirmedMessage is the terminal message for a qualified
// prospect whose seat was reserved.
func reservationConfirmedMessage(justification string, avail models.Availability, slotLabel string) string {
	remaining := avail.FreeSeats - 1
	if remaining < 0 {
		remaining = 0
	}
	msg := fmt.Sprintf(`%s

**FÉLICITATIONS !** Vous êtes qualifié et une place vous a été réservée !

**FORMATION:** %s
**PLACES DISPONIBLES:** %d restantes
**PRIX:** %.0f€
**DURÉE:** %d jours`, justification, avail.Name, remaining, avail.Price, avail.DurationDays)
	if slotLabel != "" {
		msg += fmt.Sprintf("\n**CRÉNEAU CHOISI:** %s", slotLabel)
	}
	msg += "\n\n📧 **Votre inscription a été confirmée ! Notre équipe vous contactera dans les 24h pour finaliser les détails.**"
	return msg
}

// reservationFailedMessage covers the race where the course filled up between
// the availability check and the reservation attempt.
func reservationFailedMessage(justification string) string {
	return justification + `

**PROBLÈME DE RÉSERVATION**

Votre qualification est confirmée mais nous n'avons pas pu réserver votre place.
Cela peut arriver si la formation s'est remplie entre temps.

📧 **Votre dossier a été transmis à notre équipe qui vous contactera pour vous proposer une solution.**`
}

// reviewNeededMessage is the terminal message for waitlist and refused outcomes.
func reviewNeededMessage(justification string) string {
	return justification + `

**Votre profil nécessite une étude approfondie.**

📧 **Votre dossier a été transmis à notre équipe qui vous contactera sous 48h.**`
}

// noSlotRefusalNote is appended to the justification when the prospect
// declined every available slot. Applied after scoring, never before.
const noSlotRefusalNote = `

❌ Créneau non sélectionné alors que des dates étaient disponibles.
Veuillez nous indiquer un créneau pour poursuivre l'inscription.`

// staffDetails renders the full-context block sent with staff and client
// notifications.
func staffDetails(course string, status models.QualificationStatus, justification string, avail models.Availability, slotLabel string) string {
	if slotLabel == "" {
		slotLabel = "Non précisé"
	}
	return fmt.Sprintf(`Formation demandée: %s
Statut: %s
%s
FORMATION: %s
CRÉNEAU: %s
PRIX: %.0f€
DURÉE: %d jours`, course, status, justification, avail.Name, slotLabel, avail.Price, avail.DurationDays)
}
