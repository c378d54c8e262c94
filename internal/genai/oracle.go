// Package genai provides the LLM-backed scoring oracle.
//
// This file builds the scoring prompt from the client profile and the
// collected answers, and parses the model's prose back into a structured
// Evaluation. The prose parsing is deliberately kept as a thin adapter: the
// rest of the system only ever sees the typed result.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/dreampastry/qualibot/internal/models"
	"github.com/openai/openai-go"
)

const oracleSystemPrompt = `Tu es un expert en qualification de prospects pour Dream Pastry, une école de pâtisserie.

**CRITÈRES D'ÉVALUATION:**

1. **ÂGE** (20 points max):
- 16-17 ans: non éligible (0 pts)
- 18-55 ans: optimal (20 pts)
- 56-65 ans: acceptable (10 pts)

2. **STATUT** (20 points max):
- Demandeur d'emploi: priorité (20 pts)
- Salarié: possibilité (15 pts)
- Indépendant: contraintes (10 pts)
- Autre: vérification (5 pts)

3. **BUDGET** (20 points max):
- ≥1000€: suffisant (20 pts)
- ≥500€: correct (15 pts)
- ≥200€: limité (10 pts)
- <200€: insuffisant (5 pts)

4. **CPF** (20 points max):
- Actif: facilité (20 pts)
- Inactif: alternatives (10 pts)

5. **EXPÉRIENCE PÂTISSERIE** (10 points max):
- Débutant: idéal (10 pts)
- Intermédiaire: bon (7 pts)
- Avancé: correct (5 pts)

**CLASSIFICATION FINALE:**
- QUALIFIÉ: score ≥80 (tous critères respectés)
- LISTE D'ATTENTE: score 60-79 (profil intéressant, à étudier)
- REFUSÉ: score <60 (critères non respectés)

**INSTRUCTIONS:**
1. Calcule le score total (sur 100)
2. Détermine la catégorie finale (QUALIFIÉ/LISTE D'ATTENTE/REFUSÉ)
3. Justifie ta décision point par point
4. Sois professionnel, informatif, sans promesse sur le financement CPF
5. Réponds en français, style concis et poli
6. Inclus une ligne au format exact "SCORE: <total>/100"`

var scorePattern = regexp.MustCompile(`SCORE:\s*(\d+)/100`)

// Oracle turns (profile, answers) into a qualification Evaluation.
type Oracle struct {
	client ClientInterface
}

// NewOracle creates a scoring oracle on top of a GenAI client.
func NewOracle(client ClientInterface) *Oracle {
	return &Oracle{client: client}
}

// Evaluate scores the prospect. The error is returned untranslated; the flow
// engine owns the degraded-outcome policy for oracle failures.
func (o *Oracle) Evaluate(ctx context.Context, profile models.ClientProfile, questions []models.Question, answers map[models.AnswerKey]string) (models.Evaluation, error) {
	userPrompt := buildEvaluationPrompt(profile, questions, answers)
	slog.Debug("Oracle.Evaluate: requesting evaluation", "client", profile.FullName(), "answers", len(answers))

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(oracleSystemPrompt),
		openai.UserMessage(userPrompt),
	}
	response, err := o.client.GenerateWithMessages(ctx, messages)
	if err != nil {
		slog.Error("Oracle.Evaluate: completion failed", "error", err, "client", profile.FullName())
		return models.Evaluation{}, fmt.Errorf("oracle evaluation failed: %w", err)
	}

	eval := parseEvaluation(response)
	slog.Info("Oracle.Evaluate: evaluation complete", "client", profile.FullName(), "status", eval.Status, "score", eval.Score)
	return eval, nil
}

// buildEvaluationPrompt renders the profile and answers block of the prompt.
func buildEvaluationPrompt(profile models.ClientProfile, questions []models.Question, answers map[models.AnswerKey]string) string {
	var b strings.Builder
	b.WriteString("**INFORMATIONS CLIENT:**\n")
	fmt.Fprintf(&b, "- Nom: %s\n", orUnset(profile.LastName))
	fmt.Fprintf(&b, "- Prénom: %s\n", orUnset(profile.FirstName))
	fmt.Fprintf(&b, "- Âge: %d\n", profile.Age)
	fmt.Fprintf(&b, "- Statut: %s\n", orUnset(profile.Employment))
	fmt.Fprintf(&b, "- CPF actif: %s\n", ouiNon(profile.CPFActive))
	fmt.Fprintf(&b, "- Ville: %s\n", orUnset(profile.City))
	fmt.Fprintf(&b, "- Préférence: %s\n", orUnset(profile.Modality))
	fmt.Fprintf(&b, "- Budget: %d€\n", profile.Budget)
	b.WriteString("\n**RÉPONSES AUX QUESTIONS DE QUALIFICATION:**\n")
	// Walk the question list so the answers appear in asked order.
	for _, q := range questions {
		if a, ok := answers[q.Key]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", q.Key, a)
		}
	}
	return b.String()
}

// parseEvaluation extracts the status, score and justification from the
// model's prose response.
func parseEvaluation(response string) models.Evaluation {
	var status models.QualificationStatus
	switch {
	case strings.Contains(response, string(models.StatusQualified)):
		status = models.StatusQualified
	case strings.Contains(response, string(models.StatusWaitlist)):
		status = models.StatusWaitlist
	default:
		status = models.StatusRefused
	}

	score := 0
	if m := scorePattern.FindStringSubmatch(response); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			score = n
		}
	}

	return models.Evaluation{Status: status, Score: score, Justification: response}
}

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
