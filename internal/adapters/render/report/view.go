package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/billingops/account-rescue-cli/internal/application"
	"github.com/billingops/account-rescue-cli/internal/domain"
)

type RenderOptions struct {
	Now time.Time
}

func renderCandidatesView(candidates []domain.Account, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Rescue Candidates"),
		s.header.Render(fmt.Sprintf("candidates: %d", len(candidates))),
	}

	if len(candidates) == 0 {
		lines = append(lines, s.empty.Render("No accounts need rescue in this window."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, candidate := range candidates {
		lines = append(lines, s.section.Render(renderCandidate(candidate, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderCandidate(account domain.Account, opts RenderOptions, s styles) string {
	parts := []string{
		s.account.Render(candidateTitle(account)),
		s.detail.Render(fmt.Sprintf("state: %s", account.State)),
	}

	if account.ClosedAt != nil {
		parts = append(parts, s.meta.Render(fmt.Sprintf("closed: %s", formatWhen(*account.ClosedAt, opts.Now))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderSummaryView(summary application.RunSummary, s styles) string {
	lines := []string{
		s.title.Render("Rescue Run Summary"),
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.success.Render(fmt.Sprintf("succeeded: %d", summary.Succeeded)),
			s.meta.Render("  "),
			s.failure.Render(fmt.Sprintf("failed: %d", summary.Failed)),
			s.meta.Render("  "),
			s.skipped.Render(fmt.Sprintf("skipped: %d", summary.Skipped)),
		),
	}

	if len(summary.Outcomes) == 0 {
		lines = append(lines, s.empty.Render("Nothing was processed."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, outcome := range summary.Outcomes {
		lines = append(lines, renderOutcome(outcome, s))
	}

	if summary.Failed > 0 {
		lines = append(lines, s.section.Render(
			s.warning.Render("Some accounts failed; the state file was kept for resume.")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderOutcome(outcome application.AccountOutcome, s styles) string {
	var mark string
	switch outcome.Outcome.Status {
	case domain.OutcomeStatusSuccess:
		mark = s.success.Render("ok  ")
	case domain.OutcomeStatusFailed:
		mark = s.failure.Render("fail")
	default:
		mark = s.skipped.Render("skip")
	}

	detail := string(outcome.AccountID)
	if outcome.Outcome.SubscriptionID != "" {
		detail += " " + s.meta.Render(fmt.Sprintf("(subscription %s)", outcome.Outcome.SubscriptionID))
	}
	if outcome.Outcome.Error != "" {
		detail += " " + s.meta.Render(outcome.Outcome.Error)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, mark, " ", s.detail.Render(detail))
}

func candidateTitle(account domain.Account) string {
	email := strings.TrimSpace(account.Email)
	if email != "" {
		return fmt.Sprintf("%s (%s)", account.ID, email)
	}
	if code := strings.TrimSpace(account.Code); code != "" {
		return fmt.Sprintf("%s (%s)", account.ID, code)
	}
	return string(account.ID)
}

func formatWhen(at, now time.Time) string {
	if at.IsZero() {
		return "unknown"
	}
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	days := int(now.Sub(at).Hours() / 24)
	if days < 1 {
		return at.Format("15:04 on 02 Jan")
	}
	suffix := "days"
	if days == 1 {
		suffix = "day"
	}

	return fmt.Sprintf("%s (%d %s ago)", at.Format("02 Jan 2006"), days, suffix)
}
