package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"github.com/lambdaforge/lambdaforge/core"
	"github.com/lambdaforge/lambdaforge/logger"
)

var (
	checkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle = lipgloss.NewStyle().Faint(true)
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFBA08"))
)

// runModel renders pipeline progress as a checklist with a spinner on the
// step in flight.
type runModel struct {
	ctx        context.Context
	cancel     context.CancelFunc
	spinner    spinner.Model
	steps      []core.StepType
	completed  []core.StepType
	failed     *stepError
	result     *RunResult
	publisher  *CliStepPublisher
	resultChan chan RunResult
	logger     logger.Logger
}

func newRunModel(ctx context.Context, cancel context.CancelFunc, pub *CliStepPublisher, resultChan chan RunResult, l logger.Logger) runModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("202"))

	return runModel{
		ctx:        ctx,
		cancel:     cancel,
		spinner:    s,
		steps:      core.NewDefaultStepManager().GetSteps(),
		publisher:  pub,
		resultChan: resultChan,
		logger:     l,
	}
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForNextStep, m.listenForResult)
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.logger.Debug("User interrupted the run")
			m.cancel()
			return m, tea.Sequence(tea.Printf("%s", faintStyle.Render("Interrupted. Exiting...")), tea.Quit)
		}
		return m, nil
	case core.StepType:
		m.logger.Debug(fmt.Sprintf("Received step: %v", msg))
		m.completed = append(m.completed, msg)
		return m, m.listenForNextStep
	case stepError:
		m.failed = &msg
		return m, nil
	case RunResult:
		m.result = &msg
		return m, tea.Quit
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m runModel) View() string {
	enumerator := func(_ list.Items, i int) string {
		switch {
		case i < len(m.completed):
			return checkStyle.Render("✓")
		case m.failed != nil:
			return failStyle.Render("✗")
		case m.result == nil:
			return m.spinner.View()
		default:
			return " "
		}
	}

	l := list.New().Enumerator(enumerator)
	for i, step := range m.steps {
		if i > len(m.completed) {
			break
		}
		l.Item(step.String())
	}
	return fmt.Sprint(l) + "\n"
}

func (m runModel) listenForNextStep() tea.Msg {
	select {
	case step := <-m.publisher.stepChan:
		return step
	case err := <-m.publisher.errorChan:
		m.logger.Error(fmt.Sprintf("Error received during run: %v", err))
		return err
	case <-m.ctx.Done():
		return nil
	}
}

func (m runModel) listenForResult() tea.Msg {
	select {
	case res := <-m.resultChan:
		return res
	case <-m.ctx.Done():
		return nil
	}
}

// cancelGrace is how long a cancelled run may take to report its result.
var cancelGrace = 5 * time.Second

// runPlain prints one line per finished step and returns the run result.
// Once ctx is done it waits cancelGrace for the result and then gives up.
func runPlain(ctx context.Context, w io.Writer, pub *CliStepPublisher, resultChan chan RunResult) RunResult {
	printStep := func(step core.StepType) {
		fmt.Fprintf(w, "%s %s\n", checkStyle.Render("✓"), step)
	}
	printErr := func(se stepError) {
		fmt.Fprintf(w, "%s %s\n", failStyle.Render("✗"), se.Step)
	}

	for {
		select {
		case step := <-pub.stepChan:
			printStep(step)
		case se := <-pub.errorChan:
			printErr(se)
		case <-ctx.Done():
			if res, ok := awaitResult(resultChan, cancelGrace); ok {
				return res
			}
			return RunResult{Err: ctx.Err()}
		case res := <-resultChan:
			for {
				select {
				case step := <-pub.stepChan:
					printStep(step)
				case se := <-pub.errorChan:
					printErr(se)
				default:
					return res
				}
			}
		}
	}
}

// awaitResult waits for a cancelled run to stop.
func awaitResult(resultChan chan RunResult, timeout time.Duration) (RunResult, bool) {
	select {
	case res := <-resultChan:
		return res, true
	case <-time.After(timeout):
		return RunResult{}, false
	}
}
