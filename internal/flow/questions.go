// Package flow implements the qualification conversation flow.
//
// This file builds the question sequence from the client profile. Keys are
// assigned here, at construction time, so answer storage never depends on the
// question wording.
package flow

import (
	"fmt"
	"strings"

	"github.com/dreampastry/qualibot/internal/models"
)

// BuildQuestionSequence assembles the ordered question list for a profile.
// The sequence is deterministic for a given profile: course block, common
// questions, exactly one employment branch, the financing block when the CPF
// is inactive or the budget is below the threshold, then the trailing fixed
// questions. The schedule-slot question is spliced in later, at position 1,
// once the course is known.
func BuildQuestionSequence(profile models.ClientProfile) []models.Question {
	questions := []models.Question{
		{Key: models.KeyFormation, Prompt: "Quelle formation vous intéresse le plus ? (Pâtisserie française/Macaron/Chocolat/Entremet/CAP Pâtissier/Autre)"},
		{Key: models.KeyStartHorizon, Prompt: "Quand souhaitez-vous démarrer votre formation ? (Dès que possible/Dans les 3 mois/Dans les 6 mois/Plus tard)"},
		{Key: models.KeyExperience, Prompt: "Avez-vous déjà une expérience en pâtisserie ? (Débutant/Intermédiaire/Avancé)"},
		{Key: models.KeyObjective, Prompt: "Quel est votre objectif principal ? (Reconversion professionnelle/Perfectionnement/Passion personnelle)"},
	}

	switch profile.Employment {
	case models.EmploymentJobSeeker:
		questions = append(questions,
			models.Question{Key: models.KeyJobSeekerSince, Prompt: "Depuis combien de temps êtes-vous demandeur d'emploi ?"},
			models.Question{Key: models.KeyPriorTraining, Prompt: "Avez-vous déjà suivi des formations professionnelles ?"},
		)
	case models.EmploymentSalaried:
		questions = append(questions,
			models.Question{Key: models.KeyEmployerSupport, Prompt: "Votre employeur est-il favorable à votre formation ?"},
			models.Question{Key: models.KeyTrainingLeave, Prompt: "Pouvez-vous prendre un congé formation ?"},
		)
	case models.EmploymentIndependent:
		questions = append(questions,
			models.Question{Key: models.KeyWeeklyHours, Prompt: "Combien d'heures par semaine pouvez-vous consacrer à la formation ?"},
			models.Question{Key: models.KeyActivityFit, Prompt: "Votre activité actuelle vous permet-elle de suivre une formation ?"},
		)
	}

	if !profile.CPFActive || profile.Budget < models.FinancingBudgetThreshold {
		questions = append(questions,
			models.Question{Key: models.KeyFinancingPlan, Prompt: "Comment envisagez-vous de financer cette formation ?"},
			models.Question{Key: models.KeyFinancingAid, Prompt: "Avez-vous des aides possibles (Pôle Emploi, OPCO, autres) ?"},
			models.Question{Key: models.KeyOPCORequest, Prompt: "Votre entreprise peut-elle faire une demande de prise en charge OPCO ?"},
		)
	}

	questions = append(questions,
		models.Question{Key: models.KeyMotivation, Prompt: "Qu'est-ce qui vous motive le plus dans l'apprentissage de la pâtisserie ?"},
		models.Question{Key: models.KeyConstraints, Prompt: "Avez-vous des contraintes particulières (handicap, transport, etc.) ?"},
	)

	return questions
}

// FormatSlot renders one schedule slot for menus and notifications,
// e.g. "02/10 09:00 → 12:00 (Demi-journée matin) - Paris".
func FormatSlot(s models.Slot) string {
	out := fmt.Sprintf("%s → %s", s.Start.Format("02/01 15:04"), s.End.Format("15:04"))
	if s.Label != "" {
		out += fmt.Sprintf(" (%s)", s.Label)
	}
	if s.Location != "" {
		out += " - " + s.Location
	}
	return out
}

// buildSlotMenuQuestion synthesizes the numbered slot menu spliced in after
// the course answer.
func buildSlotMenuQuestion(course string, slots []models.Slot) models.Question {
	lines := []string{fmt.Sprintf("Créneaux disponibles pour « %s »:", course)}
	for i, s := range slots {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, FormatSlot(s)))
	}
	lines = append(lines, "Quel créneau vous convient ? Répondez par le numéro (ou « aucun » si indisponible).")
	return models.Question{Key: models.KeySlotSelection, Prompt: strings.Join(lines, "\n")}
}

// buildSlotAlertQuestion is spliced in when the chosen course has no slot.
func buildSlotAlertQuestion() models.Question {
	return models.Question{
		Key:    models.KeySlotAlert,
		Prompt: "Aucun créneau n'est disponible pour cette formation. Souhaitez-vous une alerte quand un créneau s'ouvre ? (Oui/Non)",
	}
}
