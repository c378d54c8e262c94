package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dreampastry/qualibot/internal/analytics"
	"github.com/dreampastry/qualibot/internal/flow"
	"github.com/dreampastry/qualibot/internal/models"
	"github.com/dreampastry/qualibot/internal/store"
)

// stubOracle always returns a fixed evaluation.
type stubOracle struct {
	eval models.Evaluation
}

func (s *stubOracle) Evaluate(ctx context.Context, profile models.ClientProfile, questions []models.Question, answers map[models.AnswerKey]string) (models.Evaluation, error) {
	return s.eval, nil
}

// stubNotifier reports delivery success without doing anything.
type stubNotifier struct{}

func (stubNotifier) NotifyStaff(ctx context.Context, profile models.ClientProfile, details string) bool {
	return true
}

func (stubNotifier) NotifyClient(ctx context.Context, profile models.ClientProfile, status models.QualificationStatus, details string) bool {
	return true
}

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	if err := st.SeedSampleData(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	oracle := &stubOracle{eval: models.Evaluation{Status: models.StatusQualified, Score: 85, Justification: "Profil solide."}}
	engine := flow.NewEngine(st, oracle, stubNotifier{}, analytics.NewSink(st))
	return NewServer(engine, st), st
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, resp
}

const validProfileBody = `{"profile":{"nom":"Martin","prenom":"Sophie","email":"sophie@example.com","age":32,"statut":"demandeur_emploi","cpf_actif":true,"budget":1500}}`

func createConversation(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec, resp := doJSON(t, handler, http.MethodPost, "/conversations", validProfileBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create conversation: got status %d, body %s", rec.Code, rec.Body.String())
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("create conversation: unexpected result %T", resp.Result)
	}
	id, _ := result["conversation_id"].(string)
	if id == "" {
		t.Fatal("create conversation: missing conversation_id")
	}
	return id
}

func TestCreateConversation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec, resp := doJSON(t, handler, http.MethodPost, "/conversations", validProfileBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201", rec.Code)
	}
	if resp.Status != "ok" {
		t.Errorf("response status: got %q", resp.Status)
	}
	result := resp.Result.(map[string]interface{})
	if _, ok := result["eligibility"]; !ok {
		t.Error("response should include the eligibility check")
	}
	financing, _ := result["financing"].(string)
	if !strings.Contains(financing, "financement CPF") {
		t.Errorf("response should include the financing guidance, got %q", financing)
	}
}

func TestCreateConversation_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec, resp := doJSON(t, handler, http.MethodPost, "/conversations", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got status %d, want 400", rec.Code)
	}
	if resp.Status != "error" {
		t.Errorf("malformed body: response status got %q", resp.Status)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/conversations", `{"profile":{"nom":"","prenom":"","age":30}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty name: got status %d, want 400", rec.Code)
	}
}

func TestTurn_FullConversation(t *testing.T) {
	srv, st := newTestServer(t)
	handler := srv.Handler()
	id := createConversation(t, handler)

	// Opening turn starts the questionnaire.
	rec, resp := doJSON(t, handler, http.MethodPost, "/conversations/"+id+"/turns", `{"answer":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("opening turn: got status %d", rec.Code)
	}
	result := resp.Result.(map[string]interface{})
	if msg, _ := result["message"].(string); !strings.Contains(msg, "PROCESSUS DE QUALIFICATION") {
		t.Fatalf("opening turn: unexpected message %q", msg)
	}

	// Answer until the flow terminates. The seeded Macarons course has free
	// seats and no slots, so the alert opt-in question is asked.
	answers := []string{"Macarons", "non", "Dès que possible", "Débutant", "Reconversion professionnelle", "6 mois", "Non", "La création", "Aucune"}
	var terminal bool
	var lastMessage string
	for _, answer := range answers {
		_, resp := doJSON(t, handler, http.MethodPost, "/conversations/"+id+"/turns", `{"answer":"`+answer+`"}`)
		result := resp.Result.(map[string]interface{})
		lastMessage, _ = result["message"].(string)
		if terminal, _ = result["terminal"].(bool); terminal {
			break
		}
	}
	if !terminal {
		t.Fatalf("conversation did not terminate, last message %q", lastMessage)
	}
	if !strings.Contains(lastMessage, "FÉLICITATIONS") {
		t.Errorf("qualified outcome expected, got %q", lastMessage)
	}
	if got := len(st.Registrations()); got != 1 {
		t.Errorf("registrations: got %d, want 1", got)
	}

	// The session reset on the terminal turn: a new turn starts over.
	_, resp = doJSON(t, handler, http.MethodPost, "/conversations/"+id+"/turns", `{"answer":""}`)
	result = resp.Result.(map[string]interface{})
	if msg, _ := result["message"].(string); !strings.Contains(msg, "Question 1/") {
		t.Errorf("post-terminal turn should restart the flow, got %q", msg)
	}
}

func TestTurn_UnknownConversation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec, _ := doJSON(t, handler, http.MethodPost, "/conversations/nope/turns", `{"answer":""}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}

func TestTurn_ConflictWhileInFlight(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	id := createConversation(t, handler)

	conv := srv.lookup(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	rec, resp := doJSON(t, handler, http.MethodPost, "/conversations/"+id+"/turns", `{"answer":""}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("got status %d, want 409", rec.Code)
	}
	if !strings.Contains(resp.Message, "turn is already in flight") {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec, resp := doJSON(t, handler, http.MethodGet, "/formations/availability?name=macarons", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	result := resp.Result.(map[string]interface{})
	if available, _ := result["disponible"].(bool); !available {
		t.Errorf("seeded Macarons should be available, got %v", resp.Result)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/formations/availability?name=inexistante", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown course: got status %d, want 404", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/formations/availability", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name: got status %d, want 400", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	handler := srv.Handler()
	ctx := context.Background()

	st.StartAnalyticsSession(ctx, "s1", "{}")
	st.EndAnalyticsSession(ctx, "s1", models.CompletionCompleted, string(models.StatusQualified), int((5 * time.Minute).Seconds()))

	rec, resp := doJSON(t, handler, http.MethodGet, "/analytics/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	result := resp.Result.(map[string]interface{})
	if total, _ := result["total_sessions"].(float64); total != 1 {
		t.Errorf("total sessions: got %v, want 1", total)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/analytics/metrics?days=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid days: got status %d, want 400", rec.Code)
	}
}
