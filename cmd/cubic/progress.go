package main

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/n1ntencube/CubicLauncher/install"
)

const barWidth = 32

var (
	stageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	trackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	modStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type progressMsg install.Progress

type finishedMsg struct {
	lc  install.LaunchConfig
	err error
}

type progressModel struct {
	current install.Progress
	err     error
	done    bool
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.current = install.Progress(msg)
		return m, nil
	case finishedMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder

	filled := int(m.current.Percent / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}

	b.WriteString(stageStyle.Render(fmt.Sprintf("%-13s", m.current.Stage)))
	b.WriteString(" ")
	b.WriteString(barStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(trackStyle.Render(strings.Repeat("░", barWidth-filled)))
	b.WriteString(fmt.Sprintf(" %3.0f%% %s", m.current.Percent, m.current.Status))

	if m.current.ModName != "" {
		b.WriteString(" ")
		b.WriteString(modStyle.Render(m.current.ModName))
	}

	if m.done && m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("failed"))
	}

	b.WriteString("\n")
	return b.String()
}

// runWithProgress runs fn while rendering its progress, either as a
// bubbletea bar or, with plain, as one line per change.
func runWithProgress(cmd *cobra.Command, plain bool, fn func(install.Sink) (install.LaunchConfig, error)) (install.LaunchConfig, error) {
	out := cmd.OutOrStdout()
	if plain {
		return fn(plainSink(out))
	}

	p := tea.NewProgram(progressModel{},
		tea.WithContext(cmd.Context()),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	result := make(chan finishedMsg, 1)
	go func() {
		lc, err := fn(func(pr install.Progress) { p.Send(progressMsg(pr)) })
		msg := finishedMsg{lc: lc, err: err}
		result <- msg
		p.Send(msg)
	}()

	// the program only stops early when the context is cancelled, and fn
	// observes the same context
	_, _ = p.Run()

	res := <-result
	return res.lc, res.err
}

func plainSink(w io.Writer) install.Sink {
	var last install.Progress
	return func(p install.Progress) {
		if int(p.Percent) == int(last.Percent) && p.Status == last.Status && p.ModName == last.ModName {
			return
		}
		last = p

		line := fmt.Sprintf("[%3.0f%%] %s: %s", p.Percent, p.Stage, p.Status)
		if p.ModName != "" {
			line += " (" + p.ModName + ")"
		}
		fmt.Fprintln(w, line)
	}
}
