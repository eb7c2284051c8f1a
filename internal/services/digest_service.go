package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lifetracker/internal/llm"
	"lifetracker/internal/logging"
	"lifetracker/internal/mailer"
	"lifetracker/internal/models"
	"lifetracker/internal/store"

	"github.com/yuin/goldmark"
)

// priorDigestContext is how many previous digests are fed back into the
// prompt so the model does not repeat the same advice.
const priorDigestContext = 3

// DigestService generates the periodic personalized digest and emails it
// to the user, gated to a daily cap per user.
type DigestService struct {
	store    *store.Store
	invoker  llm.Invoker
	mailer   mailer.Mailer
	dailyCap int
	markdown goldmark.Markdown
}

// NewDigestService creates the digest pipeline. cap is the maximum number
// of digests per user per UTC calendar day.
func NewDigestService(st *store.Store, invoker llm.Invoker, m mailer.Mailer, dailyCap int) *DigestService {
	if dailyCap <= 0 {
		dailyCap = 1
	}
	return &DigestService{
		store:    st,
		invoker:  invoker,
		mailer:   m,
		dailyCap: dailyCap,
		markdown: goldmark.New(),
	}
}

// GenerateAndSend produces one digest for the user. The daily count is
// checked first: at the cap the call is skipped with no model invocation
// and no email send. The digest log row is written before delivery is
// attempted, so a delivery failure never hides a generated digest from
// the rate limiter.
func (s *DigestService) GenerateAndSend(ctx context.Context, userID int64) models.DigestResult {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.DigestResult{Status: models.DigestStatusError, Message: err.Error()}
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	count, err := s.store.CountDigestsSince(ctx, userID, midnight)
	if err != nil {
		return models.DigestResult{Status: models.DigestStatusError, Message: err.Error()}
	}
	if count >= s.dailyCap {
		logging.WithUser(userID).Info("digest skipped, daily cap reached", "count", count, "cap", s.dailyCap)
		return models.DigestResult{
			Status:  models.DigestStatusSkipped,
			Message: fmt.Sprintf("daily digest cap reached (%d/%d)", count, s.dailyCap),
		}
	}

	prompt, err := s.buildPrompt(ctx, userID)
	if err != nil {
		return models.DigestResult{Status: models.DigestStatusError, Message: err.Error()}
	}

	// One model call, no tool access
	resp, err := s.invoker.Invoke(ctx, &llm.Request{
		System: digestSystemInstruction,
		Turns: []models.Turn{
			{Role: models.RoleUser, Parts: []models.TurnPart{models.TextPart(prompt)}},
		},
	})
	if err != nil {
		return models.DigestResult{Status: models.DigestStatusError, Message: err.Error()}
	}

	body := strings.TrimSpace(strings.Join(resp.TextSegments, "\n\n"))
	if body == "" {
		return models.DigestResult{Status: models.DigestStatusError, Message: "model returned an empty digest"}
	}

	// Persist before sending: the content is "said" once generated, and
	// the limiter must see it even if delivery fails below.
	if _, err := s.store.CreateDigestLog(ctx, userID, body); err != nil {
		return models.DigestResult{Status: models.DigestStatusError, Message: err.Error()}
	}

	htmlBody, err := s.renderHTML(user, body)
	if err != nil {
		return models.DigestResult{Status: models.DigestStatusError, Message: err.Error()}
	}

	subject := fmt.Sprintf("Your Life Tracker Summary - %s", time.Now().UTC().Format("January 2, 2006"))
	if err := s.mailer.Send(ctx, user.Email, subject, htmlBody); err != nil {
		logging.WithUser(userID).Error("digest delivery failed, digest kept", "error", err)
		return models.DigestResult{
			Status:  models.DigestStatusError,
			Message: fmt.Sprintf("digest generated but delivery failed: %v", err),
		}
	}

	logging.WithUser(userID).Info("digest sent", "to", user.Email)
	return models.DigestResult{
		Status:  models.DigestStatusSuccess,
		Message: fmt.Sprintf("digest sent to %s", user.Email),
	}
}

const digestSystemInstruction = "You are a thoughtful personal coach writing a short email digest for a life-tracking app. " +
	"Summarize recent activity, acknowledge progress on tasks, and offer one or two concrete, actionable suggestions grounded " +
	"in the user's own data. Write in Markdown. Do not repeat advice from previous digests."

// buildPrompt gathers everything the digest model call sees: the profile,
// recent tasks and logs, and the last few digests.
func (s *DigestService) buildPrompt(ctx context.Context, userID int64) (string, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	tasks, err := s.store.ListTasks(ctx, userID, nil)
	if err != nil {
		return "", err
	}
	logs, err := s.store.ListLogs(ctx, userID, 30)
	if err != nil {
		return "", err
	}
	prior, err := s.store.ListRecentDigests(ctx, userID, priorDigestContext)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	profileJSON, _ := json.Marshal(profile)
	fmt.Fprintf(&b, "Background profile:\n%s\n\n", profileJSON)

	if len(tasks) > 0 {
		b.WriteString("Tasks:\n")
		for _, t := range tasks {
			fmt.Fprintf(&b, "- [%s] %s", t.Status, t.Description)
			if t.Deadline != nil {
				fmt.Fprintf(&b, " (due %s)", t.Deadline.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(logs) > 0 {
		b.WriteString("Recent log entries (newest first):\n")
		for _, e := range logs {
			fmt.Fprintf(&b, "- [%s] %s\n", e.CreatedAt.Format("2006-01-02"), e.Content)
		}
		b.WriteString("\n")
	}

	if len(prior) > 0 {
		b.WriteString("Previous digests (do not repeat this advice):\n")
		for _, d := range prior {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", d.CreatedAt.Format("2006-01-02"), d.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("Write today's digest.")
	return b.String(), nil
}

// renderHTML converts the Markdown digest body into the HTML email shell
func (s *DigestService) renderHTML(user *models.User, markdownBody string) (string, error) {
	var rendered bytes.Buffer
	if err := s.markdown.Convert([]byte(markdownBody), &rendered); err != nil {
		return "", fmt.Errorf("failed to render digest markdown: %w", err)
	}

	greeting := greetingName(user)
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Your Life Tracker Update</title></head>
<body>
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto; padding: 20px; border: 1px solid #ddd; border-radius: 10px;">
<h2>Hello %s,</h2>
%s
<br>
<p>Best,</p>
<p>The Life Tracker Team</p>
</div>
</body>
</html>`, greeting, rendered.String())
	return html, nil
}

// greetingName prefers the user's first name, falling back to the local
// part of their email address.
func greetingName(user *models.User) string {
	if fields := strings.Fields(user.Username); len(fields) > 0 {
		return fields[0]
	}
	if at := strings.Index(user.Email, "@"); at > 0 {
		return user.Email[:at]
	}
	return user.Email
}
