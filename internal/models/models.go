// Package models defines the core data structures for Qualibot.
//
// It includes the client profile, course inventory types and the qualification
// outcome types shared across modules.
package models

import (
	"errors"
	"time"
)

// QualificationStatus is the outcome category assigned to a prospect.
type QualificationStatus string

const (
	// StatusQualified marks a prospect eligible for immediate reservation.
	StatusQualified QualificationStatus = "QUALIFIÉ"
	// StatusWaitlist marks a prospect whose file needs further review.
	StatusWaitlist QualificationStatus = "LISTE D'ATTENTE"
	// StatusRefused marks a prospect that does not meet the criteria.
	StatusRefused QualificationStatus = "REFUSÉ"
)

// IsValidQualificationStatus checks if the given status is one of the three outcomes.
func IsValidQualificationStatus(s QualificationStatus) bool {
	switch s {
	case StatusQualified, StatusWaitlist, StatusRefused:
		return true
	default:
		return false
	}
}

// Employment status literals used by the question builder and eligibility checks.
const (
	EmploymentJobSeeker   = "Demandeur d'emploi"
	EmploymentSalaried    = "Salarié"
	EmploymentIndependent = "Indépendant"
)

// Eligibility thresholds for the pre-qualification check.
const (
	MinEligibleAge    = 16
	MaxEligibleAge    = 65
	RecommendedBudget = 500
	// FinancingBudgetThreshold triggers the financing question branch when the
	// declared budget falls below it.
	FinancingBudgetThreshold = 1000
)

// Error variables for better error handling and testability
var (
	ErrEmptyName         = errors.New("name cannot be empty")
	ErrEmptyAnswer       = errors.New("answer cannot be empty")
	ErrInvalidStatus     = errors.New("invalid qualification status")
	ErrSessionNotFound   = errors.New("conversation session not found")
	ErrFormationNotFound = errors.New("formation not found")
	ErrTurnInProgress    = errors.New("a turn is already in flight for this conversation")
)

// ClientProfile holds the prospect information collected once at conversation
// start. It is read-only for the duration of the qualification flow.
type ClientProfile struct {
	LastName   string `json:"nom"`
	FirstName  string `json:"prenom"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"telephone,omitempty"`
	Age        int    `json:"age"`
	Employment string `json:"statut"`
	CPFActive  bool   `json:"cpf_actif"`
	City       string `json:"ville,omitempty"`
	Modality   string `json:"preference,omitempty"`
	Budget     int    `json:"budget"`
}

// Validate checks the fields required before a conversation can start.
func (p ClientProfile) Validate() error {
	if p.LastName == "" || p.FirstName == "" {
		return ErrEmptyName
	}
	return nil
}

// FullName returns "Prénom Nom" for messages and notifications.
func (p ClientProfile) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Formation is a course offering with an aggregate seat capacity.
type Formation struct {
	ID            int64     `json:"id"`
	Name          string    `json:"nom"`
	Description   string    `json:"description,omitempty"`
	MaxSeats      int       `json:"places_max"`
	ReservedSeats int       `json:"places_reservees"`
	Price         float64   `json:"prix"`
	DurationDays  int       `json:"duree_jours"`
	Status        string    `json:"statut"` // active, inactive, complet
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// FreeSeats returns the remaining capacity, never negative.
func (f Formation) FreeSeats() int {
	free := f.MaxSeats - f.ReservedSeats
	if free < 0 {
		return 0
	}
	return free
}

// Slot is a concrete scheduled occurrence of a formation. The flow only
// selects slots; seat accounting stays at the formation level.
type Slot struct {
	ID          int64     `json:"id"`
	FormationID int64     `json:"formation_id"`
	Start       time.Time `json:"start_datetime"`
	End         time.Time `json:"end_datetime"`
	Label       string    `json:"label,omitempty"`
	Location    string    `json:"location,omitempty"`
	Capacity    int       `json:"capacity,omitempty"`
	Status      string    `json:"statut"` // ouverte, complet, annulee
}

// Availability is the result of a course availability check.
type Availability struct {
	Found         bool    `json:"disponible_info"`
	FormationID   int64   `json:"formation_id"`
	Name          string  `json:"nom"`
	MaxSeats      int     `json:"places_max"`
	ReservedSeats int     `json:"places_reservees"`
	FreeSeats     int     `json:"places_disponibles"`
	OpenSlotCount int     `json:"nb_sessions_ouvertes"`
	Available     bool    `json:"disponible"`
	Price         float64 `json:"prix"`
	DurationDays  int     `json:"duree_jours"`
}

// Evaluation is the structured response of the scoring oracle.
type Evaluation struct {
	Status        QualificationStatus `json:"status"`
	Score         int                 `json:"score"`
	Justification string              `json:"justification"`
}

// Eligibility is the result of the pre-qualification criteria check.
type Eligibility struct {
	Eligible      bool     `json:"eligible"`
	UnmetCriteria []string `json:"criteres_non_respectes,omitempty"`
	Message       string   `json:"message"`
}
