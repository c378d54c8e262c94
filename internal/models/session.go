// Package models defines the qualification session state carried between turns.
package models

// AnswerKey identifies where an answer is stored. Keys are assigned when the
// question sequence is built, so two differently worded questions can never
// collide on the same key.
type AnswerKey string

const (
	// KeyFormation stores the raw course-name answer.
	KeyFormation AnswerKey = "formation"
	// KeySlotSelection stores the slot menu choice ("aucun" or the 1-based index).
	KeySlotSelection AnswerKey = "creneau_selection"
	// KeySlotAlert stores the opt-in answer when no slot exists.
	KeySlotAlert AnswerKey = "alerte_creneau"

	KeyStartHorizon    AnswerKey = "horizon_demarrage"
	KeyExperience      AnswerKey = "experience"
	KeyObjective       AnswerKey = "objectif"
	KeyJobSeekerSince  AnswerKey = "anciennete_recherche"
	KeyPriorTraining   AnswerKey = "formations_suivies"
	KeyEmployerSupport AnswerKey = "accord_employeur"
	KeyTrainingLeave   AnswerKey = "conge_formation"
	KeyWeeklyHours     AnswerKey = "heures_semaine"
	KeyActivityFit     AnswerKey = "compatibilite_activite"
	KeyFinancingPlan   AnswerKey = "plan_financement"
	KeyFinancingAid    AnswerKey = "aides_financement"
	KeyOPCORequest     AnswerKey = "prise_en_charge_opco"
	KeyMotivation      AnswerKey = "motivation"
	KeyConstraints     AnswerKey = "contraintes"
)

// Question pairs a prompt shown to the user with the key its answer is stored
// under.
type Question struct {
	Key    AnswerKey `json:"key"`
	Prompt string    `json:"prompt"`
}

// QualificationSession is the mutable per-conversation state of the
// qualification flow. The conversation surface persists it between turns and
// passes it back into every Advance call.
type QualificationSession struct {
	InProgress     bool                 `json:"in_progress"`
	Questions      []Question           `json:"questions"`
	Answers        map[AnswerKey]string `json:"answers"`
	CurrentIndex   int                  `json:"current_index"`
	SlotOptions    []Slot               `json:"slot_options"`
	SelectedSlotID int64                `json:"selected_slot_id"` // 0 when none selected
	ChosenCourse   string               `json:"formation_choisie"`
	SlotRequired   bool                 `json:"slot_required"`
	RefuseIfNoSlot bool                 `json:"refuse_if_no_slot"`
	AnalyticsID    string               `json:"analytics_id,omitempty"`
	StartedAt      int64                `json:"started_at,omitempty"` // unix seconds
}

// NewQualificationSession returns a session in its initial empty state.
func NewQualificationSession() *QualificationSession {
	return &QualificationSession{Answers: make(map[AnswerKey]string)}
}

// Reset returns every field to its initial value. It is the single reset
// routine invoked on every terminal exit, so a fresh cycle can start on the
// next turn.
func (s *QualificationSession) Reset() {
	s.InProgress = false
	s.Questions = nil
	s.Answers = make(map[AnswerKey]string)
	s.CurrentIndex = 0
	s.SlotOptions = nil
	s.SelectedSlotID = 0
	s.ChosenCourse = ""
	s.SlotRequired = false
	s.RefuseIfNoSlot = false
	s.AnalyticsID = ""
	s.StartedAt = 0
}

// SelectedSlot returns the slot matching SelectedSlotID, or nil.
func (s *QualificationSession) SelectedSlot() *Slot {
	if s.SelectedSlotID == 0 {
		return nil
	}
	for i := range s.SlotOptions {
		if s.SlotOptions[i].ID == s.SelectedSlotID {
			return &s.SlotOptions[i]
		}
	}
	return nil
}
