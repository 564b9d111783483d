package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rotisserie/eris"

	"github.com/kingrea/claims-workbench/internal/claims"
)

// inputGroup is a set of text inputs with a single focused field.
type inputGroup struct {
	inputs []textinput.Model
	labels []string
	focus  int
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 40
	return ti
}

func (g *inputGroup) focusCmd() tea.Cmd {
	for i := range g.inputs {
		g.inputs[i].Blur()
	}
	if len(g.inputs) == 0 {
		return nil
	}
	return g.inputs[g.focus].Focus()
}

func (g *inputGroup) next() tea.Cmd {
	g.focus = (g.focus + 1) % len(g.inputs)
	return g.focusCmd()
}

func (g *inputGroup) prev() tea.Cmd {
	g.focus = (g.focus - 1 + len(g.inputs)) % len(g.inputs)
	return g.focusCmd()
}

func (g *inputGroup) blur() {
	for i := range g.inputs {
		g.inputs[i].Blur()
	}
}

func (g *inputGroup) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	g.inputs[g.focus], cmd = g.inputs[g.focus].Update(msg)
	return cmd
}

func (g *inputGroup) setWidth(width int) {
	for i := range g.inputs {
		g.inputs[i].Width = max(20, width-20)
	}
}

func (g *inputGroup) value(i int) string {
	return strings.TrimSpace(g.inputs[i].Value())
}

type claimForm struct {
	inputGroup
}

func newClaimForm() claimForm {
	return claimForm{inputGroup{
		inputs: []textinput.Model{
			newInput("POL-123456", 32),
			newInput("Claimant name", 80),
			newInput("What happened?", 280),
		},
		labels: []string{"Policy #", "Name", "Description"},
	}}
}

func (f *claimForm) values() (string, string, string) {
	// the policy number is normalized by the controller, not here
	return f.inputs[0].Value(), f.value(1), f.value(2)
}

type photoForm struct {
	input textinput.Model
}

func newPhotoForm() photoForm {
	return photoForm{input: newInput("photos/rear.jpg, photos/side.jpg", 1024)}
}

func (f *photoForm) focus() tea.Cmd {
	return f.input.Focus()
}

func (f *photoForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

func (f *photoForm) setWidth(width int) {
	f.input.Width = max(20, width-20)
}

// partEditor edits one damaged part; index is -1 when adding a new one.
type partEditor struct {
	inputGroup
	index int
	base  claims.DamagedPart
}

func newPartEditor(index int, part claims.DamagedPart) *partEditor {
	ed := &partEditor{
		index: index,
		base:  part,
		inputGroup: inputGroup{
			inputs: []textinput.Model{
				newInput("Rear Bumper", 60),
				newInput("minor | moderate | severe", 10),
				newInput("500", 12),
				newInput("800", 12),
				newInput("repair | replace | refinish", 40),
			},
			labels: []string{"Part", "Severity", "Min ($)", "Max ($)", "Action"},
		},
	}
	ed.inputs[0].SetValue(part.Label())
	ed.inputs[1].SetValue(string(part.Severity))
	if index >= 0 {
		ed.inputs[2].SetValue(formatDollars(part.EstimatedCostMin))
		ed.inputs[3].SetValue(formatDollars(part.EstimatedCostMax))
	}
	ed.inputs[4].SetValue(part.RepairAction)
	return ed
}

func (e *partEditor) title() string {
	if e.index < 0 {
		return "Add Part"
	}
	return fmt.Sprintf("Override Part %d", e.index+1)
}

// part builds the edited part. Fields the editor does not show keep the
// values of the part being edited.
func (e *partEditor) part() (claims.DamagedPart, error) {
	out := e.base
	label := e.value(0)
	if label != e.base.Label() {
		out.PartLabel = label
		out.PartID = ""
	}
	out.Severity = claims.Severity(strings.ToLower(e.value(1)))
	lo, err := parseDollars(e.value(2))
	if err != nil {
		return claims.DamagedPart{}, eris.Wrap(err, "min")
	}
	hi, err := parseDollars(e.value(3))
	if err != nil {
		return claims.DamagedPart{}, eris.Wrap(err, "max")
	}
	out.EstimatedCostMin, out.EstimatedCostMax = lo, hi
	out.RepairAction = e.value(4)
	return out, nil
}

// parseDollars reads "1,250.50" or "$800" into cents.
func parseDollars(raw string) (int64, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	if clean == "" {
		return 0, eris.New("amount is required")
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, eris.Errorf("%q is not a valid amount", raw)
	}
	return int64(math.Round(v * 100)), nil
}

func formatDollars(cents int64) string {
	if cents%100 == 0 {
		return strconv.FormatInt(cents/100, 10)
	}
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}

func newPartsTable() table.Model {
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Part", Width: 18},
		{Title: "Severity", Width: 9},
		{Title: "Conf.", Width: 6},
		{Title: "Min", Width: 9},
		{Title: "Max", Width: 9},
		{Title: "Action", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(6),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(accentColor)
	styles.Selected = styles.Selected.Foreground(lightColor).Background(accentColor)
	t.SetStyles(styles)
	return t
}

func partRows(a *claims.Assessment) []table.Row {
	if a == nil {
		return nil
	}
	rows := make([]table.Row, len(a.DamagedParts))
	for i, p := range a.DamagedParts {
		rows[i] = table.Row{
			strconv.Itoa(i + 1),
			p.Label(),
			string(p.Severity),
			fmt.Sprintf("%.0f%%", p.Confidence*100),
			claims.FormatCents(p.EstimatedCostMin),
			claims.FormatCents(p.EstimatedCostMax),
			p.RepairAction,
		}
	}
	return rows
}
