// Package flow implements the qualification conversation flow.
//
// The engine is stateless between calls: all per-conversation state lives in
// the QualificationSession the surface passes in, and the session is fully
// reset on every terminal exit.
package flow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dreampastry/qualibot/internal/models"
	"github.com/google/uuid"
)

// Engine drives one qualification conversation turn at a time. Turns on the
// same session must be serialized by the caller; across sessions the engine
// is safe for concurrent use.
type Engine struct {
	store     InventoryStore
	oracle    ScoringOracle
	notifier  NotificationDispatcher
	analytics AnalyticsSink
}

// NewEngine creates a qualification engine with its collaborators.
func NewEngine(store InventoryStore, oracle ScoringOracle, notifier NotificationDispatcher, analytics AnalyticsSink) *Engine {
	slog.Debug("Engine.NewEngine: creating engine", "hasStore", store != nil, "hasOracle", oracle != nil, "hasNotifier", notifier != nil, "hasAnalytics", analytics != nil)
	return &Engine{store: store, oracle: oracle, notifier: notifier, analytics: analytics}
}

// Advance consumes one user answer and returns the next prompt or the final
// outcome. The returned flags are (notifiable, terminal): notifiable marks
// outcomes worth forwarding to staff, terminal marks the end of the flow.
func (e *Engine) Advance(ctx context.Context, profile models.ClientProfile, answer string, session *models.QualificationSession) (string, bool, bool) {
	if session.Answers == nil {
		session.Answers = make(map[models.AnswerKey]string)
	}

	// Start transition: build the question sequence and ask question 1.
	if !session.InProgress {
		session.InProgress = true
		session.Questions = BuildQuestionSequence(profile)
		session.AnalyticsID = uuid.NewString()
		session.StartedAt = time.Now().Unix()

		e.analytics.StartSession(ctx, session.AnalyticsID, profile)
		e.analytics.LogEvent(ctx, session.AnalyticsID, models.EventQualification, map[string]interface{}{
			"action": "start",
			"client": profile.FullName(),
		})

		slog.Info("Engine.Advance: qualification started", "client", profile.FullName(), "questions", len(session.Questions))
		return startMessage(session.Questions[0], len(session.Questions)), false, false
	}

	current := session.Questions[session.CurrentIndex]

	switch {
	case session.CurrentIndex == 0:
		// Course-name transition: record the course, look up its slots and
		// splice the slot menu (or the alert opt-in) at position 1.
		course := strings.TrimSpace(answer)
		session.ChosenCourse = course
		session.Answers[models.KeyFormation] = course

		slots, err := e.store.ListSlots(ctx, course)
		if err != nil {
			slog.Error("Engine.Advance: slot lookup failed, proceeding without slots", "error", err, "course", course)
			slots = nil
		}
		var spliced models.Question
		if len(slots) > 0 {
			session.SlotRequired = true
			session.SlotOptions = slots
			spliced = buildSlotMenuQuestion(course, slots)
		} else {
			session.SlotRequired = false
			spliced = buildSlotAlertQuestion()
		}
		questions := make([]models.Question, 0, len(session.Questions)+1)
		questions = append(questions, session.Questions[0], spliced)
		questions = append(questions, session.Questions[1:]...)
		session.Questions = questions

		session.CurrentIndex = 1
		slog.Debug("Engine.Advance: course recorded", "course", course, "slots", len(slots))
		return nextQuestionMessage(2, len(session.Questions), session.Questions[1]), false, false

	case current.Key == models.KeySlotSelection:
		// Slot-selection transition: "aucun"/"none" or a 1-based index. An
		// invalid answer re-asks the same question without advancing.
		raw := strings.ToLower(strings.TrimSpace(answer))
		if raw == "aucun" || raw == "none" {
			session.SelectedSlotID = 0
			session.Answers[models.KeySlotSelection] = "aucun"
			if session.SlotRequired {
				session.RefuseIfNoSlot = true
			}
		} else {
			k, err := strconv.Atoi(raw)
			if err != nil {
				return slotRetryNotANumber, false, false
			}
			if k < 1 || k > len(session.SlotOptions) {
				return slotRetryOutOfRange, false, false
			}
			session.SelectedSlotID = session.SlotOptions[k-1].ID
			session.Answers[models.KeySlotSelection] = strconv.Itoa(k)
		}

	default:
		// Generic answer transition: store under the key assigned at build time.
		session.Answers[current.Key] = answer
		e.analytics.LogEvent(ctx, session.AnalyticsID, models.EventQuestionAnswered, map[string]interface{}{
			"question":       current.Prompt,
			"answer":         answer,
			"question_index": session.CurrentIndex,
		})
	}

	session.CurrentIndex++
	if session.CurrentIndex < len(session.Questions) {
		return nextQuestionMessage(session.CurrentIndex+1, len(session.Questions), session.Questions[session.CurrentIndex]), false, false
	}
	return e.terminate(ctx, profile, session)
}

// terminate runs the end-of-questionnaire sequence: scoring, the no-slot
// override, the live availability re-check, reservation or alternatives,
// notification dispatch, then the unconditional session reset.
func (e *Engine) terminate(ctx context.Context, profile models.ClientProfile, session *models.QualificationSession) (string, bool, bool) {
	eval, err := e.oracle.Evaluate(ctx, profile, session.Questions, session.Answers)
	if err != nil {
		// Documented fallback: an oracle failure degrades to a refusal with
		// the error embedded in the justification.
		slog.Error("Engine.terminate: oracle failed, degrading to refusal", "error", err, "client", profile.FullName())
		eval = models.Evaluation{
			Status:        models.StatusRefused,
			Score:         0,
			Justification: "Erreur lors de l'évaluation: " + err.Error(),
		}
	}

	if session.RefuseIfNoSlot {
		eval.Status = models.StatusRefused
		eval.Justification += noSlotRefusalNote
	}

	course := session.ChosenCourse
	duration := time.Duration(time.Now().Unix()-session.StartedAt) * time.Second
	slotLabel := ""
	if chosen := session.SelectedSlot(); chosen != nil {
		slotLabel = FormatSlot(*chosen)
	}

	avail, err := e.store.CheckAvailability(ctx, course)
	if err != nil {
		slog.Error("Engine.terminate: availability check failed", "error", err, "course", course)
		e.analytics.EndSession(ctx, session.AnalyticsID, models.CompletionAbandoned, eval.Status, duration)
		session.Reset()
		return storeUnavailableReply, false, true
	}

	// Unavailability short-circuits regardless of the scored status.
	if !avail.Available {
		alternatives, altErr := e.store.ListAlternatives(ctx, course, 0)
		if altErr != nil {
			slog.Error("Engine.terminate: alternatives lookup failed", "error", altErr, "course", course)
			alternatives = nil
		}
		message := unavailableMessage(eval.Justification, course, alternatives)

		e.analytics.LogEvent(ctx, session.AnalyticsID, models.EventCompletion, map[string]interface{}{
			"status":         string(eval.Status),
			"score":          eval.Score,
			"formation":      course,
			"session_chosen": slotLabel,
		})
		e.analytics.EndSession(ctx, session.AnalyticsID, models.CompletionCompleted, eval.Status, duration)

		slog.Info("Engine.terminate: course unavailable", "course", course, "status", eval.Status)
		session.Reset()
		return message, true, true
	}

	var message string
	if eval.Status == models.StatusQualified {
		reserved, resErr := e.store.Reserve(ctx, avail.FormationID, profile, eval.Status, eval.Score)
		if resErr != nil {
			// Indistinguishable from a lost race by contract.
			slog.Error("Engine.terminate: reservation error", "error", resErr, "formationID", avail.FormationID)
			reserved = false
		}
		if reserved {
			message = reservationConfirmedMessage(eval.Justification, avail, slotLabel)
		} else {
			message = reservationFailedMessage(eval.Justification)
		}
	} else {
		message = reviewNeededMessage(eval.Justification)
	}

	details := staffDetails(course, eval.Status, eval.Justification, avail, slotLabel)
	staffSent := e.notifier.NotifyStaff(ctx, profile, details)
	clientSent := e.notifier.NotifyClient(ctx, profile, eval.Status, details)

	e.analytics.LogEvent(ctx, session.AnalyticsID, models.EventCompletion, map[string]interface{}{
		"status":            string(eval.Status),
		"score":             eval.Score,
		"formation":         course,
		"session_chosen":    slotLabel,
		"staff_notified":    staffSent,
		"client_email_sent": clientSent,
	})
	e.analytics.EndSession(ctx, session.AnalyticsID, models.CompletionCompleted, eval.Status, duration)

	slog.Info("Engine.terminate: qualification complete", "client", profile.FullName(), "course", course, "status", eval.Status, "score", eval.Score)
	session.Reset()
	return message, true, true
}
