// Package tui is the terminal rendition of the dashboard: the gated sidebar on
// the left, the active panel on the right. Contract work runs in tea.Cmds that
// wait on dashboard tasks; store changes arrive as messages from an observer.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmsd/dmsd/internal/dashboard"
	"github.com/dmsd/dmsd/internal/nav"
	"github.com/dmsd/dmsd/internal/session"
)

type formKind int

const (
	formNone formKind = iota
	formRegister
	formMultisig
)

type (
	stateMsg  session.State
	panelMsg  struct {
		panel nav.Panel
		body  string
		err   error
	}
	submittedMsg struct {
		task *dashboard.Task
		err  error
	}
	taskMsg struct {
		task   *dashboard.Task
		result dashboard.TaskResult
	}
)

// Model is the bubbletea model of one dashboard session.
type Model struct {
	ctx    context.Context
	dash   *dashboard.Dashboard
	states chan session.State
	stop   func()

	cursor int
	body   string
	status string
	err    error

	form   formKind
	inputs []textinput.Model
	focus  int

	width, height int
	quitting      bool
}

// New builds the model of a connected dashboard.
func New(ctx context.Context, d *dashboard.Dashboard) Model {
	states := make(chan session.State, 16)
	stop := d.Store().Subscribe(func(s session.State) {
		select {
		case states <- s:
		default:
		}
	})
	m := Model{ctx: ctx, dash: d, states: states, stop: stop}
	m.cursor = m.activeIndex()
	return m
}

// Close detaches the model from the dashboard store.
func (m Model) Close() {
	if m.stop != nil {
		m.stop()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForState(), m.load())
}

func (m Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-m.states:
			return stateMsg(s)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case stateMsg:
		return m, m.waitForState()

	case panelMsg:
		if msg.panel != m.dash.Active() {
			return m, nil
		}
		m.body, m.err = msg.body, msg.err
		return m, nil

	case submittedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("%s envoyé (%s), en attente de confirmation", msg.task.Tx.Method, short(msg.task.Tx.Hash.Hex()))
		return m, waitTask(m.ctx, msg.task)

	case taskMsg:
		switch msg.result.Status {
		case dashboard.TaskConfirmed:
			m.err = nil
			m.status = fmt.Sprintf("%s confirmé au bloc %d", msg.task.Tx.Method, msg.result.Receipt.BlockNumber)
		case dashboard.TaskDiscarded:
			m.status = fmt.Sprintf("%s ignoré, le panneau a été quitté", msg.task.Tx.Method)
			return m, nil
		default:
			m.err = msg.result.Err
			m.status = ""
		}
		return m, m.load()

	case tea.KeyMsg:
		if m.form != formNone {
			return m.updateForm(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.dash.Sidebar()
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(entries)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor >= len(entries) {
			return m, nil
		}
		out, err := m.dash.Select(m.ctx, entries[m.cursor].Label)
		if err != nil {
			m.err = err
			return m, nil
		}
		if out.Logout {
			m.quitting = true
			return m, tea.Quit
		}
		m.cursor = m.activeIndex()
		m.status, m.err = "", nil
		if out.Changed {
			m.body = ""
			return m, m.load()
		}
	case "r":
		return m, m.load()
	case "n":
		if m.dash.Active() == nav.Subscription {
			return m.openForm(formRegister)
		}
	case "m":
		if m.dash.Active() == nav.Subscription {
			return m.openForm(formMultisig)
		}
	case "s":
		return m, m.submit(m.dash.Subscribe)
	case "v":
		return m, m.submit(m.dash.ValidateApproval)
	case "t":
		return m, m.submit(func(ctx context.Context) (*dashboard.Task, error) {
			return m.dash.TransferToMultisig(ctx, nil)
		})
	case "a":
		return m, m.submit(m.dash.Approve)
	}
	return m, nil
}

func (m Model) openForm(kind formKind) (tea.Model, tea.Cmd) {
	var placeholders []string
	switch kind {
	case formRegister:
		placeholders = []string{"Nom d'utilisateur", "Email"}
	case formMultisig:
		placeholders = []string{"Adresse de récupération 1", "Adresse de récupération 2", "Adresse à protéger"}
	}
	m.inputs = make([]textinput.Model, len(placeholders))
	for i, p := range placeholders {
		in := textinput.New()
		in.Placeholder = p
		in.CharLimit = 64
		in.Width = 44
		in.PromptStyle = promptStyle
		m.inputs[i] = in
	}
	m.form, m.focus = kind, 0
	return m, m.inputs[0].Focus()
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.form, m.inputs = formNone, nil
		return m, nil
	case "tab", "down":
		return m.refocus(m.focus + 1)
	case "shift+tab", "up":
		return m.refocus(m.focus - 1)
	case "enter":
		if m.focus < len(m.inputs)-1 {
			return m.refocus(m.focus + 1)
		}
		values := make([]string, len(m.inputs))
		for i, in := range m.inputs {
			values[i] = in.Value()
		}
		kind := m.form
		m.form, m.inputs = formNone, nil
		if kind == formRegister {
			return m, m.submit(func(ctx context.Context) (*dashboard.Task, error) {
				return m.dash.Register(ctx, values[0], values[1])
			})
		}
		form := dashboard.MultisigForm{Recovery1: values[0], Recovery2: values[1], WalletToProtect: values[2]}
		return m, m.submit(func(ctx context.Context) (*dashboard.Task, error) {
			return m.dash.CreateMultisig(ctx, form)
		})
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) refocus(i int) (tea.Model, tea.Cmd) {
	n := len(m.inputs)
	i = (i%n + n) % n
	m.inputs[m.focus].Blur()
	m.focus = i
	return m, m.inputs[i].Focus()
}

func (m Model) submit(fn func(ctx context.Context) (*dashboard.Task, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		task, err := fn(ctx)
		return submittedMsg{task: task, err: err}
	}
}

func waitTask(ctx context.Context, task *dashboard.Task) tea.Cmd {
	return func() tea.Msg {
		res, err := task.Wait(ctx)
		if err != nil {
			res = dashboard.TaskResult{Status: dashboard.TaskFailed, Err: err}
		}
		return taskMsg{task: task, result: res}
	}
}

// load reads the active panel.
func (m Model) load() tea.Cmd {
	d, ctx := m.dash, m.ctx
	panel := d.Active()
	return func() tea.Msg {
		body, err := renderPanel(ctx, d, panel)
		return panelMsg{panel: panel, body: body, err: err}
	}
}

func (m Model) activeIndex() int {
	active := m.dash.Active()
	for i, e := range m.dash.Sidebar() {
		if !e.Item.Logout && e.Item.Panel == active {
			return i
		}
	}
	return 0
}

func short(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + "…" + hash[len(hash)-4:]
}

func lines(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i] == "" {
			b.WriteString(pairs[i+1] + "\n")
			continue
		}
		b.WriteString(labelStyle.Render(pairs[i]+":") + " " + pairs[i+1] + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
