package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lifetracker/internal/database"
	"lifetracker/internal/llm"
	"lifetracker/internal/models"
	"lifetracker/internal/store"
)

// recordingMailer captures sends and optionally fails them
type recordingMailer struct {
	err      error
	sent     int
	lastTo   string
	lastSubj string
	lastBody string
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.err != nil {
		return m.err
	}
	m.sent++
	m.lastTo = to
	m.lastSubj = subject
	m.lastBody = htmlBody
	return nil
}

func newDigestFixture(t *testing.T, invoker llm.Invoker, m *recordingMailer, dailyCap int) (*DigestService, *store.Store, int64) {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	st := store.New(db)
	user, err := st.GetOrCreateUserByEmail(context.Background(), "digest@example.com", "Digest Tester")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return NewDigestService(st, invoker, m, dailyCap), st, user.ID
}

func TestGenerateAndSend_Success(t *testing.T) {
	invoker := &scriptedInvoker{responses: []*llm.Response{
		{TextSegments: []string{"## Today\n\nYou **finished** the report. Keep going!"}},
	}}
	m := &recordingMailer{}
	svc, st, userID := newDigestFixture(t, invoker, m, 1)
	ctx := context.Background()

	st.CreateLog(ctx, userID, "Finished the report", models.CategoryAction)

	result := svc.GenerateAndSend(ctx, userID)
	if result.Status != models.DigestStatusSuccess {
		t.Fatalf("status = %s (%s)", result.Status, result.Message)
	}
	if m.sent != 1 || m.lastTo != "digest@example.com" {
		t.Errorf("mailer: sent=%d to=%q", m.sent, m.lastTo)
	}
	if !strings.Contains(m.lastSubj, "Your Life Tracker Summary") {
		t.Errorf("subject = %q", m.lastSubj)
	}
	// Markdown is rendered into the HTML shell
	if !strings.Contains(m.lastBody, "<strong>finished</strong>") || !strings.Contains(m.lastBody, "Hello Digest,") {
		t.Errorf("body = %q", m.lastBody)
	}

	digests, err := st.ListRecentDigests(ctx, userID, 10)
	if err != nil {
		t.Fatalf("ListRecentDigests: %v", err)
	}
	if len(digests) != 1 {
		t.Errorf("got %d digest logs, want 1", len(digests))
	}
}

func TestGenerateAndSend_DailyCap(t *testing.T) {
	responses := make([]*llm.Response, 0, 3)
	for i := 0; i < 3; i++ {
		responses = append(responses, &llm.Response{TextSegments: []string{"digest body"}})
	}
	invoker := &scriptedInvoker{responses: responses}
	m := &recordingMailer{}
	svc, st, userID := newDigestFixture(t, invoker, m, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := svc.GenerateAndSend(ctx, userID)
		if result.Status != models.DigestStatusSuccess {
			t.Fatalf("digest %d: status = %s (%s)", i+1, result.Status, result.Message)
		}
	}

	// The fourth attempt is refused before any model call or send
	modelCalls := len(invoker.requests)
	result := svc.GenerateAndSend(ctx, userID)
	if result.Status != models.DigestStatusSkipped {
		t.Fatalf("status = %s, want skipped", result.Status)
	}
	if len(invoker.requests) != modelCalls {
		t.Error("skipped digest still invoked the model")
	}
	if m.sent != 3 {
		t.Errorf("mailer sent %d, want 3", m.sent)
	}
	digests, _ := st.ListRecentDigests(ctx, userID, 10)
	if len(digests) != 3 {
		t.Errorf("got %d digest logs, want 3", len(digests))
	}
}

func TestGenerateAndSend_DeliveryFailureKeepsLog(t *testing.T) {
	invoker := &scriptedInvoker{responses: []*llm.Response{
		{TextSegments: []string{"digest body"}},
	}}
	m := &recordingMailer{err: errors.New("smtp relay down")}
	svc, st, userID := newDigestFixture(t, invoker, m, 1)
	ctx := context.Background()

	result := svc.GenerateAndSend(ctx, userID)
	if result.Status != models.DigestStatusError {
		t.Fatalf("status = %s, want error", result.Status)
	}
	if !strings.Contains(result.Message, "delivery failed") {
		t.Errorf("message = %q", result.Message)
	}

	// The generated digest still counts against the cap
	digests, _ := st.ListRecentDigests(ctx, userID, 10)
	if len(digests) != 1 {
		t.Fatalf("got %d digest logs, want 1", len(digests))
	}
	result = svc.GenerateAndSend(ctx, userID)
	if result.Status != models.DigestStatusSkipped {
		t.Errorf("retry after failed delivery: status = %s, want skipped", result.Status)
	}
}

func TestGenerateAndSend_ModelFailure(t *testing.T) {
	invoker := &scriptedInvoker{err: models.ErrModelUnavailable}
	m := &recordingMailer{}
	svc, st, userID := newDigestFixture(t, invoker, m, 1)
	ctx := context.Background()

	result := svc.GenerateAndSend(ctx, userID)
	if result.Status != models.DigestStatusError {
		t.Fatalf("status = %s, want error", result.Status)
	}
	if m.sent != 0 {
		t.Error("email sent despite model failure")
	}
	digests, _ := st.ListRecentDigests(ctx, userID, 10)
	if len(digests) != 0 {
		t.Error("digest log written despite model failure")
	}
}

func TestGenerateAndSend_UnknownUser(t *testing.T) {
	invoker := &scriptedInvoker{}
	svc, _, _ := newDigestFixture(t, invoker, &recordingMailer{}, 1)

	result := svc.GenerateAndSend(context.Background(), 999)
	if result.Status != models.DigestStatusError {
		t.Errorf("status = %s, want error", result.Status)
	}
	if len(invoker.requests) != 0 {
		t.Error("model invoked for unknown user")
	}
}

func TestGenerateAndSend_PromptIncludesPriorDigests(t *testing.T) {
	invoker := &scriptedInvoker{responses: []*llm.Response{
		{TextSegments: []string{"fresh digest"}},
	}}
	svc, st, userID := newDigestFixture(t, invoker, &recordingMailer{}, 5)
	ctx := context.Background()

	if _, err := st.CreateDigestLog(ctx, userID, "yesterday's advice"); err != nil {
		t.Fatalf("CreateDigestLog: %v", err)
	}

	result := svc.GenerateAndSend(ctx, userID)
	if result.Status != models.DigestStatusSuccess {
		t.Fatalf("status = %s (%s)", result.Status, result.Message)
	}
	prompt := invoker.requests[0].Turns[0].Parts[0].Text
	if !strings.Contains(prompt, "yesterday's advice") {
		t.Errorf("prompt missing prior digest:\n%s", prompt)
	}
}

func TestGreetingName(t *testing.T) {
	cases := []struct {
		username, email, want string
	}{
		{"Dominik Mueller", "d@example.com", "Dominik"},
		{"", "dominik@example.com", "dominik"},
		{"   ", "dominik@example.com", "dominik"},
		{"", "@example.com", "@example.com"},
	}
	for _, tc := range cases {
		got := greetingName(&models.User{Username: tc.username, Email: tc.email})
		if got != tc.want {
			t.Errorf("greetingName(%q, %q) = %q, want %q", tc.username, tc.email, got, tc.want)
		}
	}
}
