package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
)

// Report is the snapshot the view renders.
type Report struct {
	State        domain.SessionState
	Identity     *domain.UserIdentity
	ExpiresAt    time.Time
	LastActiveAt time.Time
	InstallID    string
}

type RenderOptions struct {
	Now time.Time
}

func renderView(report Report, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Halcyon Session"),
		stateLine(report.State, s),
	}

	if report.State != domain.StateAuthenticated && report.Identity == nil {
		lines = append(lines, s.empty.Render("No session stored. Run 'hs login' to sign in."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, s.section.Render(renderIdentity(report.Identity, s)))
	lines = append(lines, s.section.Render(renderLifecycle(report, opts, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func stateLine(state domain.SessionState, s styles) string {
	if state == domain.StateAuthenticated {
		return s.ok.Render("authenticated")
	}

	return s.warning.Render("signed out")
}

func renderIdentity(identity *domain.UserIdentity, s styles) string {
	if identity == nil {
		return s.empty.Render("profile: not cached")
	}

	parts := []string{
		keyValue("user", displayName(*identity), s),
		keyValue("email", identity.Email, s),
	}
	if len(identity.Flags) > 0 {
		parts = append(parts, keyValue("flags", strings.Join(identity.Flags, ", "), s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderLifecycle(report Report, opts RenderOptions, s styles) string {
	parts := []string{
		keyValue("token", expiryLabel(report.ExpiresAt, opts.Now), s),
		keyValue("last active", relativeLabel(report.LastActiveAt, opts.Now), s),
	}
	if report.InstallID != "" {
		parts = append(parts, s.meta.Render(fmt.Sprintf("install %s", report.InstallID)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func keyValue(key, value string, s styles) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render(key+":"),
		" ",
		s.value.Render(value),
	)
}

func displayName(identity domain.UserIdentity) string {
	full := strings.TrimSpace(identity.FirstName + " " + identity.LastName)
	if full == "" {
		return identity.Username
	}
	if identity.Username == "" {
		return full
	}

	return fmt.Sprintf("%s (%s)", full, identity.Username)
}

func expiryLabel(expiresAt, now time.Time) string {
	if expiresAt.IsZero() {
		return "no recorded expiry"
	}
	if !expiresAt.After(now) {
		return "expired, refresh pending"
	}

	return fmt.Sprintf("valid for %s", humanDuration(expiresAt.Sub(now)))
}

func relativeLabel(at, now time.Time) string {
	if at.IsZero() {
		return "never"
	}

	elapsed := now.Sub(at)
	if elapsed < time.Minute {
		return "just now"
	}

	return fmt.Sprintf("%s ago", humanDuration(elapsed))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%d days", int(d.Hours())/24)
	case d >= 2*time.Hour:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	case d >= time.Hour:
		return "1 hour"
	case d >= 2*time.Minute:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d >= time.Minute:
		return "1 minute"
	default:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
}
