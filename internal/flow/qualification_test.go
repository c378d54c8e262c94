package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dreampastry/qualibot/internal/models"
)

// mockStore implements InventoryStore with per-test behavior.
type mockStore struct {
	availability models.Availability
	availErr     error
	reserveOK    bool
	reserveErr   error
	reserveCalls int
	alternatives []models.Formation
	slots        []models.Slot
	slotsErr     error
}

func (m *mockStore) CheckAvailability(ctx context.Context, namePattern string) (models.Availability, error) {
	return m.availability, m.availErr
}

func (m *mockStore) Reserve(ctx context.Context, formationID int64, profile models.ClientProfile, status models.QualificationStatus, score int) (bool, error) {
	m.reserveCalls++
	return m.reserveOK, m.reserveErr
}

func (m *mockStore) ListAlternatives(ctx context.Context, excludeName string, limit int) ([]models.Formation, error) {
	return m.alternatives, nil
}

func (m *mockStore) ListSlots(ctx context.Context, namePattern string) ([]models.Slot, error) {
	return m.slots, m.slotsErr
}

// mockOracle implements ScoringOracle.
type mockOracle struct {
	eval models.Evaluation
	err  error
}

func (m *mockOracle) Evaluate(ctx context.Context, profile models.ClientProfile, questions []models.Question, answers map[models.AnswerKey]string) (models.Evaluation, error) {
	return m.eval, m.err
}

// mockNotifier implements NotificationDispatcher and records calls.
type mockNotifier struct {
	staffCalls  int
	clientCalls int
	lastStatus  models.QualificationStatus
	lastDetails string
}

func (m *mockNotifier) NotifyStaff(ctx context.Context, profile models.ClientProfile, details string) bool {
	m.staffCalls++
	m.lastDetails = details
	return true
}

func (m *mockNotifier) NotifyClient(ctx context.Context, profile models.ClientProfile, status models.QualificationStatus, details string) bool {
	m.clientCalls++
	m.lastStatus = status
	return true
}

// mockAnalytics implements AnalyticsSink and records event types.
type mockAnalytics struct {
	started bool
	ended   bool
	endWith string
	events  []string
}

func (m *mockAnalytics) StartSession(ctx context.Context, sessionID string, profile models.ClientProfile) {
	m.started = true
}

func (m *mockAnalytics) LogEvent(ctx context.Context, sessionID, eventType string, payload map[string]interface{}) {
	m.events = append(m.events, eventType)
}

func (m *mockAnalytics) EndSession(ctx context.Context, sessionID, completionStatus string, qualificationStatus models.QualificationStatus, duration time.Duration) {
	m.ended = true
	m.endWith = completionStatus
}

func jobSeekerProfile() models.ClientProfile {
	return models.ClientProfile{
		LastName:   "Martin",
		FirstName:  "Sophie",
		Email:      "sophie.martin@example.com",
		Age:        32,
		Employment: models.EmploymentJobSeeker,
		CPFActive:  true,
		Budget:     1500,
	}
}

func salariedProfile() models.ClientProfile {
	return models.ClientProfile{
		LastName:   "Durand",
		FirstName:  "Paul",
		Age:        41,
		Employment: models.EmploymentSalaried,
		CPFActive:  false,
		Budget:     800,
	}
}

func sampleSlots() []models.Slot {
	return []models.Slot{
		{ID: 11, FormationID: 1, Start: time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 10, 2, 12, 0, 0, 0, time.UTC), Label: "Matin", Location: "Paris"},
		{ID: 12, FormationID: 1, Start: time.Date(2026, 10, 9, 14, 0, 0, 0, time.UTC), End: time.Date(2026, 10, 9, 17, 0, 0, 0, time.UTC), Label: "Après-midi", Location: "Paris"},
	}
}

func newTestEngine(st *mockStore, oracle *mockOracle) (*Engine, *mockNotifier, *mockAnalytics) {
	notifier := &mockNotifier{}
	sink := &mockAnalytics{}
	return NewEngine(st, oracle, notifier, sink), notifier, sink
}

// runToLastQuestion drives the flow from start through every question except
// the final one, using slotAnswer for the slot menu.
func runToLastQuestion(t *testing.T, e *Engine, profile models.ClientProfile, session *models.QualificationSession, course, slotAnswer string) {
	t.Helper()
	ctx := context.Background()

	if _, _, terminal := e.Advance(ctx, profile, "", session); terminal {
		t.Fatal("start turn must not be terminal")
	}
	if _, _, terminal := e.Advance(ctx, profile, course, session); terminal {
		t.Fatal("course turn must not be terminal")
	}
	for session.CurrentIndex < len(session.Questions)-1 {
		answer := "réponse"
		if session.Questions[session.CurrentIndex].Key == models.KeySlotSelection {
			answer = slotAnswer
		}
		if _, _, terminal := e.Advance(ctx, profile, answer, session); terminal {
			t.Fatalf("unexpected terminal turn at index %d", session.CurrentIndex)
		}
	}
}

func TestAdvance_StartTransition(t *testing.T) {
	e, _, sink := newTestEngine(&mockStore{}, &mockOracle{})
	session := models.NewQualificationSession()

	msg, notifiable, terminal := e.Advance(context.Background(), jobSeekerProfile(), "", session)
	if notifiable || terminal {
		t.Errorf("start turn flags: got notifiable=%v terminal=%v, want false/false", notifiable, terminal)
	}
	if !strings.Contains(msg, "PROCESSUS DE QUALIFICATION") {
		t.Errorf("expected start banner, got %q", msg)
	}
	if !strings.Contains(msg, "Question 1/8") {
		t.Errorf("job seeker with active CPF and budget should get 8 questions, got %q", msg)
	}
	if !session.InProgress {
		t.Error("session should be in progress after start")
	}
	if session.AnalyticsID == "" {
		t.Error("start turn should assign an analytics id")
	}
	if !sink.started {
		t.Error("start turn should open an analytics session")
	}
}

func TestAdvance_StartCounts(t *testing.T) {
	e, _, _ := newTestEngine(&mockStore{}, &mockOracle{})

	cases := []struct {
		name    string
		profile models.ClientProfile
		want    int
	}{
		{"job seeker, no financing block", jobSeekerProfile(), 8},
		{"salaried, financing block", salariedProfile(), 11},
	}
	for _, tc := range cases {
		session := models.NewQualificationSession()
		e.Advance(context.Background(), tc.profile, "", session)
		if got := len(session.Questions); got != tc.want {
			t.Errorf("%s: got %d questions, want %d", tc.name, got, tc.want)
		}
	}
}

func TestAdvance_CourseSpliceWithSlots(t *testing.T) {
	st := &mockStore{slots: sampleSlots()}
	e, _, _ := newTestEngine(st, &mockOracle{})
	session := models.NewQualificationSession()
	ctx := context.Background()
	profile := jobSeekerProfile()

	e.Advance(ctx, profile, "", session)
	before := len(session.Questions)

	msg, _, _ := e.Advance(ctx, profile, "Macarons", session)
	if len(session.Questions) != before+1 {
		t.Errorf("slot menu should be spliced in: got %d questions, want %d", len(session.Questions), before+1)
	}
	if session.Questions[1].Key != models.KeySlotSelection {
		t.Errorf("question at position 1 should be the slot menu, got key %q", session.Questions[1].Key)
	}
	if !session.SlotRequired {
		t.Error("SlotRequired should be set when slots exist")
	}
	if session.ChosenCourse != "Macarons" {
		t.Errorf("chosen course: got %q", session.ChosenCourse)
	}
	if !strings.Contains(msg, "Question 2/9") {
		t.Errorf("expected question 2 of 9, got %q", msg)
	}
	if !strings.Contains(msg, "1.") || !strings.Contains(msg, "2.") {
		t.Errorf("slot menu should number the options, got %q", msg)
	}
}

func TestAdvance_CourseSpliceWithoutSlots(t *testing.T) {
	e, _, _ := newTestEngine(&mockStore{}, &mockOracle{})
	session := models.NewQualificationSession()
	ctx := context.Background()
	profile := jobSeekerProfile()

	e.Advance(ctx, profile, "", session)
	e.Advance(ctx, profile, "Chocolat", session)

	if session.SlotRequired {
		t.Error("SlotRequired should stay false without slots")
	}
	if session.Questions[1].Key != models.KeySlotAlert {
		t.Errorf("question at position 1 should be the alert opt-in, got key %q", session.Questions[1].Key)
	}
}

func TestAdvance_SlotRetryDoesNotAdvance(t *testing.T) {
	st := &mockStore{slots: sampleSlots()}
	e, _, _ := newTestEngine(st, &mockOracle{})
	session := models.NewQualificationSession()
	ctx := context.Background()
	profile := jobSeekerProfile()

	e.Advance(ctx, profile, "", session)
	e.Advance(ctx, profile, "Macarons", session)
	idx := session.CurrentIndex

	msg, _, terminal := e.Advance(ctx, profile, "mardi", session)
	if terminal {
		t.Fatal("retry must not be terminal")
	}
	if session.CurrentIndex != idx {
		t.Errorf("cursor moved on invalid answer: got %d, want %d", session.CurrentIndex, idx)
	}
	if !strings.Contains(msg, "numéro") {
		t.Errorf("expected numeric re-prompt, got %q", msg)
	}

	msg, _, _ = e.Advance(ctx, profile, "7", session)
	if session.CurrentIndex != idx {
		t.Errorf("cursor moved on out-of-range answer: got %d, want %d", session.CurrentIndex, idx)
	}
	if !strings.Contains(msg, "valide") {
		t.Errorf("expected out-of-range re-prompt, got %q", msg)
	}
}

func TestAdvance_SlotSelectionByIndex(t *testing.T) {
	st := &mockStore{slots: sampleSlots()}
	e, _, _ := newTestEngine(st, &mockOracle{})
	session := models.NewQualificationSession()
	ctx := context.Background()
	profile := jobSeekerProfile()

	e.Advance(ctx, profile, "", session)
	e.Advance(ctx, profile, "Macarons", session)
	e.Advance(ctx, profile, "2", session)

	if session.SelectedSlotID != 12 {
		t.Errorf("answer \"2\" should select the second slot: got id %d, want 12", session.SelectedSlotID)
	}
	if session.RefuseIfNoSlot {
		t.Error("RefuseIfNoSlot must not be set after a valid selection")
	}
}

func TestAdvance_QualifiedReservesAndResets(t *testing.T) {
	st := &mockStore{
		slots: sampleSlots(),
		availability: models.Availability{
			Found: true, Available: true, FormationID: 1,
			Name: "Formation Macarons", FreeSeats: 6, Price: 450, DurationDays: 2,
		},
		reserveOK: true,
	}
	oracle := &mockOracle{eval: models.Evaluation{Status: models.StatusQualified, Score: 85, Justification: "Profil solide."}}
	e, notifier, sink := newTestEngine(st, oracle)
	session := models.NewQualificationSession()
	profile := jobSeekerProfile()

	runToLastQuestion(t, e, profile, session, "Macarons", "1")
	msg, notifiable, terminal := e.Advance(context.Background(), profile, "aucune contrainte", session)

	if !notifiable || !terminal {
		t.Errorf("final turn flags: got notifiable=%v terminal=%v, want true/true", notifiable, terminal)
	}
	if !strings.Contains(msg, "FÉLICITATIONS") {
		t.Errorf("expected reservation confirmation, got %q", msg)
	}
	if !strings.Contains(msg, "CRÉNEAU CHOISI") {
		t.Errorf("confirmation should include the chosen slot, got %q", msg)
	}
	if st.reserveCalls != 1 {
		t.Errorf("reserve calls: got %d, want 1", st.reserveCalls)
	}
	if notifier.staffCalls != 1 || notifier.clientCalls != 1 {
		t.Errorf("notification calls: staff=%d client=%d, want 1/1", notifier.staffCalls, notifier.clientCalls)
	}
	if !sink.ended || sink.endWith != models.CompletionCompleted {
		t.Errorf("analytics session should end completed, got ended=%v status=%q", sink.ended, sink.endWith)
	}

	if session.InProgress {
		t.Error("session must be reset after a terminal turn")
	}
	if len(session.Answers) != 0 || len(session.Questions) != 0 || session.CurrentIndex != 0 {
		t.Error("session state must be fully cleared after a terminal turn")
	}
	if session.SelectedSlotID != 0 || session.ChosenCourse != "" || session.RefuseIfNoSlot {
		t.Error("slot state must be fully cleared after a terminal turn")
	}
}

func TestAdvance_ReservationRaceLost(t *testing.T) {
	st := &mockStore{
		availability: models.Availability{Found: true, Available: true, FormationID: 1, Name: "Formation Macarons", FreeSeats: 1},
		reserveOK:    false,
	}
	oracle := &mockOracle{eval: models.Evaluation{Status: models.StatusQualified, Score: 80, Justification: "OK."}}
	e, _, _ := newTestEngine(st, oracle)
	session := models.NewQualificationSession()
	profile := jobSeekerProfile()

	runToLastQuestion(t, e, profile, session, "Macarons", "oui")
	msg, _, terminal := e.Advance(context.Background(), profile, "non", session)

	if !terminal {
		t.Fatal("expected terminal turn")
	}
	if !strings.Contains(msg, "PROBLÈME DE RÉSERVATION") {
		t.Errorf("expected reservation failure message, got %q", msg)
	}
}

func TestAdvance_RefusedSkipsReservation(t *testing.T) {
	st := &mockStore{
		availability: models.Availability{Found: true, Available: true, FormationID: 1, Name: "Formation Macarons"},
		reserveOK:    true,
	}
	oracle := &mockOracle{eval: models.Evaluation{Status: models.StatusRefused, Score: 25, Justification: "Budget insuffisant."}}
	e, notifier, _ := newTestEngine(st, oracle)
	session := models.NewQualificationSession()
	profile := salariedProfile()

	runToLastQuestion(t, e, profile, session, "Macarons", "oui")
	msg, _, _ := e.Advance(context.Background(), profile, "non", session)

	if st.reserveCalls != 0 {
		t.Errorf("refused prospect must not trigger a reservation, got %d calls", st.reserveCalls)
	}
	if !strings.Contains(msg, "étude approfondie") {
		t.Errorf("expected review message, got %q", msg)
	}
	if notifier.lastStatus != models.StatusRefused {
		t.Errorf("client notification status: got %q, want %q", notifier.lastStatus, models.StatusRefused)
	}
}

func TestAdvance_NoSlotOverridesQualified(t *testing.T) {
	st := &mockStore{
		slots:        sampleSlots(),
		availability: models.Availability{Found: true, Available: true, FormationID: 1, Name: "Formation Macarons"},
		reserveOK:    true,
	}
	oracle := &mockOracle{eval: models.Evaluation{Status: models.StatusQualified, Score: 90, Justification: "Excellent profil."}}
	e, notifier, _ := newTestEngine(st, oracle)
	session := models.NewQualificationSession()
	profile := jobSeekerProfile()

	runToLastQuestion(t, e, profile, session, "Macarons", "aucun")
	msg, _, _ := e.Advance(context.Background(), profile, "non", session)

	if st.reserveCalls != 0 {
		t.Errorf("refusing every slot must block the reservation, got %d calls", st.reserveCalls)
	}
	if !strings.Contains(msg, "Créneau non sélectionné") {
		t.Errorf("expected the no-slot note in the outcome, got %q", msg)
	}
	if notifier.lastStatus != models.StatusRefused {
		t.Errorf("status should be overridden to refused, got %q", notifier.lastStatus)
	}
}

func TestAdvance_UnavailableListsAlternatives(t *testing.T) {
	st := &mockStore{
		availability: models.Availability{Found: true, Available: false, Name: "Formation Viennoiseries"},
		alternatives: []models.Formation{
			{Name: "Formation Chocolat", MaxSeats: 10, ReservedSeats: 3, Price: 600},
			{Name: "Formation Macarons", MaxSeats: 8, ReservedSeats: 2, Price: 450},
		},
	}
	oracle := &mockOracle{eval: models.Evaluation{Status: models.StatusQualified, Score: 88, Justification: "Bon profil."}}
	e, notifier, sink := newTestEngine(st, oracle)
	session := models.NewQualificationSession()
	profile := jobSeekerProfile()

	runToLastQuestion(t, e, profile, session, "Viennoiseries", "oui")
	msg, notifiable, terminal := e.Advance(context.Background(), profile, "non", session)

	if !notifiable || !terminal {
		t.Errorf("unavailable outcome flags: got notifiable=%v terminal=%v, want true/true", notifiable, terminal)
	}
	if !strings.Contains(msg, "FORMATION COMPLÈTE OU NON DISPONIBLE") {
		t.Errorf("expected unavailability banner, got %q", msg)
	}
	if !strings.Contains(msg, "Formation Chocolat - 7 places disponibles - 600€") {
		t.Errorf("expected alternatives list, got %q", msg)
	}
	if st.reserveCalls != 0 {
		t.Error("unavailable course must never be reserved")
	}
	if notifier.staffCalls != 0 || notifier.clientCalls != 0 {
		t.Error("unavailable outcome must not dispatch notifications")
	}
	if sink.endWith != models.CompletionCompleted {
		t.Errorf("analytics end status: got %q, want %q", sink.endWith, models.CompletionCompleted)
	}
	if session.InProgress {
		t.Error("session must be reset after the unavailable outcome")
	}
}

func TestAdvance_OracleFailureDegradesToRefusal(t *testing.T) {
	st := &mockStore{
		availability: models.Availability{Found: true, Available: true, FormationID: 1, Name: "Formation Macarons"},
	}
	oracle := &mockOracle{err: errors.New("api timeout")}
	e, notifier, _ := newTestEngine(st, oracle)
	session := models.NewQualificationSession()
	profile := jobSeekerProfile()

	runToLastQuestion(t, e, profile, session, "Macarons", "oui")
	msg, _, terminal := e.Advance(context.Background(), profile, "non", session)

	if !terminal {
		t.Fatal("oracle failure must still terminate the flow")
	}
	if !strings.Contains(msg, "Erreur lors de l'évaluation: api timeout") {
		t.Errorf("expected degraded justification, got %q", msg)
	}
	if notifier.lastStatus != models.StatusRefused {
		t.Errorf("degraded status: got %q, want %q", notifier.lastStatus, models.StatusRefused)
	}
	if st.reserveCalls != 0 {
		t.Error("degraded refusal must not reserve")
	}
	if session.InProgress {
		t.Error("session must be reset after the degraded outcome")
	}
}

func TestAdvance_StoreFailureAbandons(t *testing.T) {
	st := &mockStore{availErr: errors.New("connection refused")}
	oracle := &mockOracle{eval: models.Evaluation{Status: models.StatusQualified, Score: 85, Justification: "OK."}}
	e, notifier, sink := newTestEngine(st, oracle)
	session := models.NewQualificationSession()
	profile := jobSeekerProfile()

	runToLastQuestion(t, e, profile, session, "Macarons", "oui")
	msg, notifiable, terminal := e.Advance(context.Background(), profile, "non", session)

	if notifiable || !terminal {
		t.Errorf("store failure flags: got notifiable=%v terminal=%v, want false/true", notifiable, terminal)
	}
	if !strings.Contains(msg, "Erreur de connexion à la base de données") {
		t.Errorf("expected generic store failure message, got %q", msg)
	}
	if strings.Contains(msg, "connection refused") {
		t.Errorf("internal error text must not reach the client: %q", msg)
	}
	if notifier.staffCalls != 0 {
		t.Error("store failure must not dispatch notifications")
	}
	if sink.endWith != models.CompletionAbandoned {
		t.Errorf("analytics end status: got %q, want %q", sink.endWith, models.CompletionAbandoned)
	}
	if session.InProgress {
		t.Error("session must be reset after a store failure")
	}
}

func TestAdvance_SlotLookupFailureProceedsWithoutSlots(t *testing.T) {
	st := &mockStore{slotsErr: errors.New("timeout")}
	e, _, _ := newTestEngine(st, &mockOracle{})
	session := models.NewQualificationSession()
	ctx := context.Background()
	profile := jobSeekerProfile()

	e.Advance(ctx, profile, "", session)
	_, _, terminal := e.Advance(ctx, profile, "Macarons", session)
	if terminal {
		t.Fatal("slot lookup failure must not terminate the flow")
	}
	if session.SlotRequired {
		t.Error("SlotRequired should stay false when the lookup fails")
	}
	if session.Questions[1].Key != models.KeySlotAlert {
		t.Errorf("expected alert opt-in after lookup failure, got key %q", session.Questions[1].Key)
	}
}
