package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/workbench"
)

var (
	accentColor = lipgloss.Color("#5B8DEF")
	lightColor  = lipgloss.Color("#FFFFFF")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(accentColor)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	modalStyle   = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#F7B801")).Padding(1, 2)
)

func (a *App) mainWidth() int {
	width := a.width
	if width <= 0 {
		width = 100
	}
	if width < 72 {
		return width - 4
	}
	return width - a.logWidth() - 8
}

func (a *App) logWidth() int {
	if a.width > 0 && a.width < 72 {
		return 0
	}
	return max(30, a.width/3)
}

// View renders the workbench.
func (a *App) View() string {
	header := headerStyle.Render("⬡ CLAIMS WORKBENCH")

	var main string
	switch {
	case a.view.Pending != workbench.ConfirmNone:
		main = a.renderConfirm()
	case a.editor != nil:
		main = a.renderEditor()
	default:
		main = a.renderStep()
	}
	left := lipgloss.JoinVertical(lipgloss.Left,
		a.renderProgress(),
		"",
		main,
		"",
		a.renderMessages(),
	)
	body := boxStyle.Width(a.mainWidth()).Render(left)
	if lw := a.logWidth(); lw > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, boxStyle.Width(lw).Render(a.renderLogPanel()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, mutedStyle.Render(a.renderHints()))
}

func (a *App) renderProgress() string {
	steps := []claims.Step{claims.StepClaimEntry, claims.StepPhotoUpload, claims.StepReadyToAssess, claims.StepDecision}
	parts := make([]string, len(steps))
	for i, s := range steps {
		label := fmt.Sprintf("%d %s", int(s), s.FriendlyName())
		switch {
		case s == a.view.Step:
			parts[i] = titleStyle.Render("● " + label)
		case s < a.view.Step:
			parts[i] = successStyle.Render("✓ " + label)
		default:
			parts[i] = mutedStyle.Render("○ " + label)
		}
	}
	line := strings.Join(parts, mutedStyle.Render("  ›  "))
	if c := a.view.Claim; c != nil {
		line = lipgloss.JoinVertical(lipgloss.Left, line, detailStyle.Render(fmt.Sprintf("%s · %s", c.PolicyNumber, fallback(c.Name, "unnamed claimant"))))
	}
	return line
}

func (a *App) renderStep() string {
	switch a.view.Step {
	case claims.StepClaimEntry:
		return a.renderClaimForm()
	case claims.StepPhotoUpload, claims.StepReadyToAssess:
		return a.renderPhotos()
	case claims.StepDecision:
		return a.renderDecision()
	}
	return ""
}

func (a *App) renderClaimForm() string {
	lines := []string{titleStyle.Render("Claim Entry")}
	for i, input := range a.form.inputs {
		lines = append(lines, fmt.Sprintf("%-12s %s", a.form.labels[i], input.View()))
		if i == 0 && a.view.PolicyError != "" {
			lines = append(lines, errorStyle.Render("             "+a.view.PolicyError))
		}
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderPhotos() string {
	lines := []string{titleStyle.Render("Damage Photos")}
	if a.view.UploadHint != "" {
		lines = append(lines, warnStyle.Render(a.view.UploadHint))
	}
	if len(a.view.Photos) == 0 {
		lines = append(lines, mutedStyle.Render("No photos yet."))
	}
	for i, p := range a.view.Photos {
		lines = append(lines, detailStyle.Render(fmt.Sprintf("%d. %s  %s  %s", i+1, p.Filename, p.Meta.MimeType, humanBytes(p.Meta.SizeBytes))))
	}
	lines = append(lines, "", "Paths  "+a.photos.input.View())
	if a.view.Running {
		lines = append(lines, "", a.spinner.View()+" "+runningStyle.Render("Assessing damage..."))
	} else if a.view.Step == claims.StepReadyToAssess {
		lines = append(lines, "", successStyle.Render("Ready to assess.")+mutedStyle.Render(" Press ctrl+r to run the AI assessment."))
	}
	if a.view.Assessment != nil {
		lines = append(lines, "", a.renderAssessmentSummary())
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderDecision() string {
	sections := []string{
		titleStyle.Render("Assessment"),
		a.renderAssessmentSummary(),
		"",
		a.parts.View(),
	}
	if breakdown := a.renderBreakdown(); breakdown != "" {
		sections = append(sections, "", breakdown)
	}
	if a.view.Decided() {
		sections = append(sections, "", successStyle.Render("Decision recorded.")+mutedStyle.Render(" Press ctrl+n for the next claim."))
	} else {
		sections = append(sections, "", a.actions.View())
	}
	return strings.Join(sections, "\n")
}

func (a *App) renderAssessmentSummary() string {
	as := a.view.Assessment
	if as == nil {
		return ""
	}
	lines := []string{
		fmt.Sprintf("Estimate    %s - %s", claims.FormatCents(as.TotalMin), claims.FormatCents(as.TotalMax)),
		fmt.Sprintf("Confidence  %.0f%%", as.OverallConfidence*100),
		fmt.Sprintf("Recommend   %s", fallback(as.Recommendation.Text, string(as.Recommendation.Code))),
	}
	switch as.FraudRisk() {
	case claims.FraudRiskReview:
		lines = append(lines, errorStyle.Render(fmt.Sprintf("Fraud risk  %.0f%% · review", *as.FraudRiskScore*100)))
	case claims.FraudRiskElevated:
		lines = append(lines, warnStyle.Render(fmt.Sprintf("Fraud risk  %.0f%% · elevated", *as.FraudRiskScore*100)))
	default:
		if as.FraudRiskScore != nil {
			lines = append(lines, fmt.Sprintf("Fraud risk  %.0f%%", *as.FraudRiskScore*100))
		}
	}
	if len(as.Flags) > 0 {
		lines = append(lines, warnStyle.Render("Flags       "+strings.Join(as.Flags, ", ")))
	}
	if len(as.ImageQuality) > 0 {
		lines = append(lines, detailStyle.Render("Images      "+strings.Join(as.ImageQuality, " · ")))
	}
	if as.Meta != nil {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("Model       %s · %dms", as.Meta.ModelVersion, as.Meta.ProcessingTimeMS)))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderBreakdown() string {
	as := a.view.Assessment
	if as == nil || len(as.CostBreakdown) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Cost Breakdown"))
	for _, entry := range as.CostBreakdown {
		b.WriteString("\n" + entry.Label)
		for _, d := range entry.Details {
			b.WriteString("\n  " + detailStyle.Render(d))
		}
	}
	return b.String()
}

func (a *App) renderEditor() string {
	lines := []string{titleStyle.Render(a.editor.title())}
	for i, input := range a.editor.inputs {
		lines = append(lines, fmt.Sprintf("%-10s %s", a.editor.labels[i], input.View()))
	}
	lines = append(lines, "", mutedStyle.Render("enter save · esc cancel · tab next field"))
	return strings.Join(lines, "\n")
}

func (a *App) renderConfirm() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		warnStyle.Render(a.view.Pending.Title()),
		"",
		lipgloss.NewStyle().Width(max(30, a.mainWidth()-12)).Render(a.view.Prompt()),
		"",
		mutedStyle.Render("[y] confirm   [n] cancel"),
	)
	return modalStyle.Render(body)
}

func (a *App) renderMessages() string {
	var lines []string
	if a.view.SuccessMessage != "" {
		lines = append(lines, successStyle.Render(a.view.SuccessMessage))
	}
	if a.view.AssessmentError != "" {
		lines = append(lines, errorStyle.Render(a.view.AssessmentError))
	}
	if a.flash != "" {
		lines = append(lines, errorStyle.Render(a.flash))
	}
	if a.view.Status != "" && a.view.Status != a.view.AssessmentError {
		lines = append(lines, detailStyle.Render(a.view.Status))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderLogPanel() string {
	name := "session"
	if a.journal != nil {
		if base := filepath.Base(a.journal.Path()); base != "." && base != "" {
			name = base
		}
		if _, total := a.journal.Tail(0); total > 0 {
			name = fmt.Sprintf("%s · %d", name, total)
		}
	}
	entries := a.view.Actions
	if len(entries) > a.logLines {
		entries = entries[len(entries)-a.logLines:]
	}
	body := mutedStyle.Render("No activity yet.")
	if len(entries) > 0 {
		body = detailStyle.Render(strings.Join(entries, "\n"))
	}
	return fmt.Sprintf("%s\n%s", titleStyle.Render("LOG · "+name), body)
}

func (a *App) renderHints() string {
	hints := []string{"ctrl+z undo", "ctrl+n new claim", "ctrl+c quit"}
	switch {
	case a.view.Pending != workbench.ConfirmNone, a.editor != nil:
	case a.view.Step == claims.StepClaimEntry:
		hints = append([]string{"tab next field", "enter submit"}, hints...)
	case a.view.Step == claims.StepPhotoUpload || a.view.Step == claims.StepReadyToAssess:
		hints = append([]string{"enter attach photos", "ctrl+x clear photos", "ctrl+r assess"}, hints...)
	case a.view.Step == claims.StepDecision:
		hints = append([]string{"a approve", "e escalate", "p photos", "o override", "n add", "x remove", "tab focus"}, hints...)
	}
	return strings.Join(hints, " · ")
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func fallback(value, alt string) string {
	if strings.TrimSpace(value) == "" {
		return alt
	}
	return value
}
