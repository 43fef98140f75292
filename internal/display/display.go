// Package display provides terminal formatting for unibox output.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/unibox/internal/types"
)

var (
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	UnreadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2563eb"))
	PendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ImportantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
)

// StatusDot returns a colored dot for a triage bucket.
func StatusDot(st types.Status) string {
	switch st {
	case types.StatusUnread:
		return UnreadStyle.Render("●")
	case types.StatusPending:
		return PendingStyle.Render("○")
	case types.StatusImportant:
		return ImportantStyle.Render("●")
	default:
		return Dim.Render("·")
	}
}

// StatusLabel returns a styled, fixed-width bucket label.
func StatusLabel(st types.Status) string {
	label := fmt.Sprintf("%-9s", strings.ToUpper(st.String()))
	switch st {
	case types.StatusUnread:
		return UnreadStyle.Render(label)
	case types.StatusPending:
		return PendingStyle.Render(label)
	case types.StatusImportant:
		return ImportantStyle.Render(label)
	default:
		return label
	}
}

// AccountLabel returns a short label for a provider account, e.g.
// "imap:user@example.com" -> "example".
func AccountLabel(account string) string {
	account = strings.TrimPrefix(account, "imap:")
	if idx := strings.Index(account, "@"); idx > 0 {
		domain := account[idx+1:]
		if dotIdx := strings.Index(domain, "."); dotIdx > 0 {
			return domain[:dotIdx]
		}
		return domain
	}
	return account
}

// TimeAgo formats a timestamp as a relative time.
func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// Truncate shortens a string to maxLen, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// Item prints one inbox item as a single styled line.
func Item(it *types.Item) {
	fmt.Printf("%s %s %s  %s  ·  %s  %s\n",
		StatusDot(it.Status),
		Dim.Render(fmt.Sprintf("#%d", it.ID)),
		Bold.Render(Truncate(it.Subject, 60)),
		Truncate(it.Sender, 40),
		Muted.Render(AccountLabel(it.Account)),
		Dim.Render(TimeAgo(it.ReceivedAt)),
	)
	if it.Preview != "" {
		fmt.Printf("    %s\n", Dim.Render(Truncate(it.Preview, 100)))
	}
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Success.Render("✓") + " " + msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}
