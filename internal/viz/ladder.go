package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/simstate/internal/state"
)

var (
	realizedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	unrealizedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	currentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	ladderLabel     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
)

// StageLadder renders the realization ladder of s, highest stage first,
// with the current system stage marked and one row per subsystem.
func StageLadder(s *state.State) string {
	var b strings.Builder

	b.WriteString(ladderLabel.Render("system"))
	b.WriteString(renderLadderRow(s.SystemStage(), s.SystemStage()))
	b.WriteString("\n")

	for i := 0; i < s.NumSubsystems(); i++ {
		sx := state.SubsystemIndex(i)
		name, _ := s.SubsystemName(sx)
		st, _ := s.SubsystemStage(sx)
		b.WriteString(ladderLabel.Render(name))
		b.WriteString(renderLadderRow(st, s.SystemStage()))
		b.WriteString("\n")
	}
	return b.String()
}

func renderLadderRow(at, system state.Stage) string {
	parts := make([]string, 0, int(state.StageReport)+1)
	for g := state.StageEmpty; g <= state.StageReport; g++ {
		label := g.String()
		switch {
		case g == at:
			parts = append(parts, currentStyle.Render(label))
		case g < at:
			parts = append(parts, realizedStyle.Render(label))
		default:
			parts = append(parts, unrealizedStyle.Render(label))
		}
	}
	return strings.Join(parts, unrealizedStyle.Render(" > "))
}

// StageVersionsLine is a one-line summary of the per-stage version
// counters up to the current stage.
func StageVersionsLine(s *state.State) string {
	versions := s.SystemStageVersions()
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = fmt.Sprintf("%s:%d", state.Stage(i), v)
	}
	return strings.Join(parts, " ")
}
