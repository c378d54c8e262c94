// Package store provides inventory and analytics storage backends for Qualibot.
//
// This file implements an in-memory store used in tests and development mode.
// A single mutex guards all state, which trivially satisfies the Reserve
// atomicity contract.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dreampastry/qualibot/internal/models"
)

// Registration is one reserved seat recorded by the in-memory store.
type Registration struct {
	Profile     models.ClientProfile
	FormationID int64
	Status      models.QualificationStatus
	Score       int
	At          time.Time
}

type memorySession struct {
	clientInfo          string
	start               time.Time
	end                 time.Time
	completionStatus    string
	qualificationStatus string
	durationSeconds     int
}

// InMemoryStore is a mutex-guarded Store for tests and development.
type InMemoryStore struct {
	mu            sync.Mutex
	formations    map[int64]*models.Formation
	slots         []models.Slot
	registrations []Registration
	sessions      map[string]*memorySession
	events        []models.AnalyticsEvent
	nextID        int64
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		formations: make(map[int64]*models.Formation),
		sessions:   make(map[string]*memorySession),
		nextID:     1,
	}
}

// AddFormation inserts a formation and returns its assigned id.
func (s *InMemoryStore) AddFormation(f models.Formation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		f.ID = s.nextID
		s.nextID++
	}
	if f.Status == "" {
		f.Status = "active"
	}
	cp := f
	s.formations[f.ID] = &cp
	return f.ID
}

// AddSlot inserts a schedule slot.
func (s *InMemoryStore) AddSlot(slot models.Slot) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.ID == 0 {
		slot.ID = s.nextID
		s.nextID++
	}
	if slot.Status == "" {
		slot.Status = "ouverte"
	}
	s.slots = append(s.slots, slot)
	return slot.ID
}

// Registrations returns a copy of all recorded registrations.
func (s *InMemoryStore) Registrations() []Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Registration, len(s.registrations))
	copy(out, s.registrations)
	return out
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// CheckAvailability matches the first active formation whose name contains the
// pattern, case-insensitively, in id order.
func (s *InMemoryStore) CheckAvailability(ctx context.Context, namePattern string) (models.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.matchLocked(namePattern)
	if f == nil {
		return models.Availability{}, nil
	}
	openSlots := 0
	for _, sl := range s.slots {
		if sl.FormationID == f.ID && sl.Status == "ouverte" {
			openSlots++
		}
	}
	return models.Availability{
		Found:         true,
		FormationID:   f.ID,
		Name:          f.Name,
		MaxSeats:      f.MaxSeats,
		ReservedSeats: f.ReservedSeats,
		FreeSeats:     f.MaxSeats - f.ReservedSeats,
		OpenSlotCount: openSlots,
		Available:     f.MaxSeats-f.ReservedSeats > 0,
		Price:         f.Price,
		DurationDays:  f.DurationDays,
	}, nil
}

func (s *InMemoryStore) matchLocked(namePattern string) *models.Formation {
	pattern := strings.ToLower(namePattern)
	ids := make([]int64, 0, len(s.formations))
	for id := range s.formations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		f := s.formations[id]
		if f.Status == "active" && strings.Contains(strings.ToLower(f.Name), pattern) {
			return f
		}
	}
	return nil
}

// Reserve checks the seat counter and increments it under the store mutex.
func (s *InMemoryStore) Reserve(ctx context.Context, formationID int64, profile models.ClientProfile, status models.QualificationStatus, score int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.formations[formationID]
	if !ok || f.Status != "active" {
		return false, nil
	}
	if f.ReservedSeats >= f.MaxSeats {
		return false, nil
	}
	s.registrations = append(s.registrations, Registration{
		Profile:     profile,
		FormationID: formationID,
		Status:      status,
		Score:       score,
		At:          time.Now(),
	})
	f.ReservedSeats++
	return true, nil
}

// ListAlternatives returns active formations with free seats, excluding the
// named one, ordered by name.
func (s *InMemoryStore) ListAlternatives(ctx context.Context, excludeName string, limit int) ([]models.Formation, error) {
	if limit <= 0 {
		limit = DefaultAlternativesLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Formation
	for _, f := range s.formations {
		if f.Status == "active" && f.Name != excludeName && f.MaxSeats-f.ReservedSeats > 0 {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListSlots returns the slots of formations matching the pattern, by start time.
func (s *InMemoryStore) ListSlots(ctx context.Context, namePattern string) ([]models.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pattern := strings.ToLower(namePattern)
	var out []models.Slot
	for _, sl := range s.slots {
		f, ok := s.formations[sl.FormationID]
		if !ok || !strings.Contains(strings.ToLower(f.Name), pattern) {
			continue
		}
		out = append(out, sl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// StartAnalyticsSession records the start of a tracked qualification session.
func (s *InMemoryStore) StartAnalyticsSession(ctx context.Context, sessionID, clientInfoJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &memorySession{
		clientInfo:       clientInfoJSON,
		start:            time.Now(),
		completionStatus: models.CompletionInProgress,
	}
	return nil
}

// EndAnalyticsSession closes a tracked session with its final statuses.
func (s *InMemoryStore) EndAnalyticsSession(ctx context.Context, sessionID, completionStatus, qualificationStatus string, durationSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	sess.end = time.Now()
	sess.completionStatus = completionStatus
	sess.qualificationStatus = qualificationStatus
	sess.durationSeconds = durationSeconds
	return nil
}

// LogAnalyticsEvent appends one event to a tracked session.
func (s *InMemoryStore) LogAnalyticsEvent(ctx context.Context, sessionID, eventType, payloadJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, models.AnalyticsEvent{
		SessionID: sessionID,
		EventType: eventType,
		Payload:   payloadJSON,
		Timestamp: time.Now(),
	})
	return nil
}

// Events returns a copy of all recorded analytics events.
func (s *InMemoryStore) Events() []models.AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AnalyticsEvent, len(s.events))
	copy(out, s.events)
	return out
}

// GetAnalyticsMetrics aggregates session outcomes over the trailing window.
func (s *InMemoryStore) GetAnalyticsMetrics(ctx context.Context, days int) (models.AnalyticsMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -days)
	var m models.AnalyticsMetrics
	var durationSum float64
	for _, sess := range s.sessions {
		if sess.start.Before(cutoff) {
			continue
		}
		m.TotalSessions++
		if sess.completionStatus == models.CompletionCompleted {
			m.CompletedSessions++
			durationSum += float64(sess.durationSeconds)
			if sess.qualificationStatus == string(models.StatusQualified) {
				m.QualifiedCount++
			}
		}
	}
	if m.TotalSessions > 0 {
		m.CompletionRate = float64(m.CompletedSessions) * 100 / float64(m.TotalSessions)
	}
	if m.CompletedSessions > 0 {
		m.QualificationRate = float64(m.QualifiedCount) * 100 / float64(m.CompletedSessions)
		m.AvgDurationMinutes = durationSum / float64(m.CompletedSessions) / 60
	}
	return m, nil
}
