package models

import (
	"testing"
	"time"
)

func TestQualificationSession_Reset(t *testing.T) {
	s := &QualificationSession{
		InProgress:     true,
		Questions:      []Question{{Key: KeyFormation, Prompt: "?"}},
		Answers:        map[AnswerKey]string{KeyFormation: "Macarons"},
		CurrentIndex:   3,
		SlotOptions:    []Slot{{ID: 1}},
		SelectedSlotID: 1,
		ChosenCourse:   "Macarons",
		SlotRequired:   true,
		RefuseIfNoSlot: true,
		AnalyticsID:    "abc",
		StartedAt:      time.Now().Unix(),
	}

	s.Reset()

	if s.InProgress || s.CurrentIndex != 0 || s.SlotRequired || s.RefuseIfNoSlot {
		t.Errorf("flags not cleared: %+v", s)
	}
	if s.Questions != nil || s.SlotOptions != nil {
		t.Errorf("slices not cleared: %+v", s)
	}
	if len(s.Answers) != 0 {
		t.Errorf("answers not cleared: %v", s.Answers)
	}
	if s.Answers == nil {
		t.Error("answers map must stay usable after reset")
	}
	if s.SelectedSlotID != 0 || s.ChosenCourse != "" || s.AnalyticsID != "" || s.StartedAt != 0 {
		t.Errorf("identity fields not cleared: %+v", s)
	}
}

func TestQualificationSession_SelectedSlot(t *testing.T) {
	s := NewQualificationSession()
	s.SlotOptions = []Slot{{ID: 7}, {ID: 9}}

	if got := s.SelectedSlot(); got != nil {
		t.Errorf("no selection: got %+v, want nil", got)
	}

	s.SelectedSlotID = 9
	got := s.SelectedSlot()
	if got == nil || got.ID != 9 {
		t.Errorf("selection: got %+v, want slot 9", got)
	}

	s.SelectedSlotID = 99
	if got := s.SelectedSlot(); got != nil {
		t.Errorf("dangling selection: got %+v, want nil", got)
	}
}

func TestClientProfile_Validate(t *testing.T) {
	ok := ClientProfile{LastName: "Martin", FirstName: "Sophie"}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid profile: unexpected error %v", err)
	}
	missing := ClientProfile{FirstName: "Sophie"}
	if err := missing.Validate(); err != ErrEmptyName {
		t.Errorf("missing last name: got %v, want ErrEmptyName", err)
	}
}

func TestFormation_FreeSeats(t *testing.T) {
	f := Formation{MaxSeats: 10, ReservedSeats: 3}
	if got := f.FreeSeats(); got != 7 {
		t.Errorf("free seats: got %d, want 7", got)
	}
	over := Formation{MaxSeats: 5, ReservedSeats: 8}
	if got := over.FreeSeats(); got != 0 {
		t.Errorf("overbooked free seats: got %d, want 0", got)
	}
}
