// Package flow implements the qualification conversation flow.
//
// This file holds the pre-qualification eligibility check and the CPF
// financing guidance shown before the questionnaire starts. Both are pure
// functions over the profile: they inform the prospect but never gate the
// flow, which is the scoring oracle's job.
package flow

import (
	"fmt"
	"strings"

	"github.com/dreampastry/qualibot/internal/models"
)

// CheckEligibility verifies the CPF framing criteria (age bracket, employment
// status, recommended budget, CPF activation) and returns the unmet criteria
// with an explanatory message.
func CheckEligibility(profile models.ClientProfile) models.Eligibility {
	var unmet []string
	var explanations []string

	if profile.Age < models.MinEligibleAge {
		unmet = append(unmet, "âge minimum")
		explanations = append(explanations, fmt.Sprintf("L'âge minimum requis est de %d ans", models.MinEligibleAge))
	} else if profile.Age > models.MaxEligibleAge {
		unmet = append(unmet, "âge maximum")
		explanations = append(explanations, fmt.Sprintf("L'âge maximum pour le CPF est de %d ans", models.MaxEligibleAge))
	}

	switch profile.Employment {
	case models.EmploymentSalaried, models.EmploymentJobSeeker, models.EmploymentIndependent:
	default:
		unmet = append(unmet, "statut professionnel")
		explanations = append(explanations, fmt.Sprintf("Le statut '%s' peut limiter les possibilités de financement", profile.Employment))
	}

	if profile.Budget < models.RecommendedBudget {
		unmet = append(unmet, "budget insuffisant")
		explanations = append(explanations, fmt.Sprintf("Un budget minimum de %d€ est recommandé pour les formations", models.RecommendedBudget))
	}

	if !profile.CPFActive {
		unmet = append(unmet, "CPF inactif")
		explanations = append(explanations, "Le CPF n'est pas actif - possibilités de financement alternatives à explorer")
	}

	message := "Tous les critères sont respectés"
	if len(explanations) > 0 {
		message = strings.Join(explanations, " ; ")
	}
	return models.Eligibility{
		Eligible:      len(unmet) == 0,
		UnmetCriteria: unmet,
		Message:       message,
	}
}

// FinancingGuidance generates the informative CPF financing discussion for a
// profile, including the mandatory disclaimers. Informational only, no
// financing promise is ever made.
func FinancingGuidance(profile models.ClientProfile, unmetCriteria []string) string {
	var parts []string

	parts = append(parts, "💡 **Informations sur le financement CPF :**")

	if profile.CPFActive {
		parts = append(parts, "✅ Votre CPF est actif, ce qui ouvre des possibilités de financement.")
		parts = append(parts, "📋 **Possibilités de prise en charge selon votre profil :**")
		switch profile.Employment {
		case models.EmploymentSalaried:
			parts = append(parts,
				"• En tant que salarié, vous pouvez mobiliser votre CPF pour une formation",
				"• Possibilité de congé formation (avec accord employeur)",
				"• Prise en charge OPCO possible pour certaines formations",
				"• Financement partiel ou total selon les conditions")
		case models.EmploymentJobSeeker:
			parts = append(parts,
				"• En tant que demandeur d'emploi, vous avez accès à votre CPF",
				"• Possibilité de formation intensive",
				"• Financement facilité par Pôle Emploi")
		case models.EmploymentIndependent:
			parts = append(parts,
				"• En tant qu'indépendant, vous pouvez utiliser votre CPF",
				"• Formation possible pendant ou en dehors de votre activité",
				"• Adaptation aux contraintes de votre activité")
		default:
			parts = append(parts,
				"• Votre statut peut offrir des possibilités spécifiques",
				"• À vérifier selon votre situation particulière")
		}
	} else {
		parts = append(parts,
			"⚠️ Votre CPF n'est pas actif selon vos informations.",
			"📋 **Alternatives de financement possibles :**",
			"• Financement personnel",
			"• Aide de Pôle Emploi (sous conditions d'éligibilité)",
			"• Prise en charge OPCO (si salarié et formation éligible)",
			"• Formation en alternance (sous conditions)",
			"• Autres dispositifs selon votre situation")
	}

	parts = append(parts,
		"\n⚠️ **IMPORTANT - GARDE-FOUS OBLIGATOIRES :**",
		"• Les informations données sont à titre INFORMATIF UNIQUEMENT",
		"• Aucune promesse de financement n'est garantie",
		"• Chaque situation est unique et nécessite une analyse personnalisée",
		"• Les conditions de financement peuvent varier selon votre profil",
		"• Une étude approfondie sera nécessaire pour confirmer l'éligibilité",
		"• Les conditions CPF sont soumises à la réglementation en vigueur",
		"• Consultez les conditions officielles sur moncompteformation.gouv.fr")

	if len(unmetCriteria) > 0 {
		parts = append(parts, "\n🔍 **Points d'attention identifiés :**")
		for _, criterion := range unmetCriteria {
			parts = append(parts, "• "+capitalize(criterion))
		}
		parts = append(parts, "• Ces points seront étudiés lors de l'entretien personnalisé")
	}

	parts = append(parts,
		"\n📞 **Prochaines étapes :**",
		"• Notre équipe vous contactera pour un entretien personnalisé",
		"• Analyse détaillée de votre situation et de vos besoins",
		"• Proposition de solutions de financement adaptées",
		"• Accompagnement dans les démarches administratives")

	return strings.Join(parts, "\n")
}

// capitalize upper-cases the first rune of a criterion label.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}
