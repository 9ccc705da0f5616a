// Package tui is the interactive terminal client. Every navigation goes
// through the access guard, and session changes made elsewhere (such as a
// forced logout after a failed credential refresh) re-run it.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/tenderdesk/internal/account"
	"github.com/felixgeelhaar/tenderdesk/internal/guard"
	"github.com/felixgeelhaar/tenderdesk/internal/log"
	"github.com/felixgeelhaar/tenderdesk/internal/pending"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
	"github.com/felixgeelhaar/tenderdesk/internal/ux"
)

// keyMap defines the global shortcuts.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

// Config wires an App.
type Config struct {
	Service *account.Service
	Routes  *guard.Routes
	Pending *pending.Manager
	Logger  *log.Logger
	// Start is the first screen requested. Defaults to the dashboard.
	Start guard.Screen
}

// formValues backs the huh fields of the current screen.
type formValues struct {
	Choice    string
	Email     string
	Password  string
	Firstname string
	Lastname  string
	Token     string
	Name      string
	Code      string
}

// App is the root bubbletea model.
type App struct {
	ctx     context.Context
	svc     *account.Service
	routes  *guard.Routes
	pending *pending.Manager
	logger  *log.Logger

	state       session.State
	updates     <-chan session.State
	unsubscribe func()

	requested guard.Screen
	screen    guard.Screen
	decision  guard.Decision

	form    *huh.Form
	input   formValues
	spinner spinner.Model
	busy    bool
	members []session.Profile

	notice  string
	lastErr string

	width    int
	height   int
	quitting bool
	styles   Styles
}

// NewApp builds the model and subscribes it to session changes. Call
// Close when the program ends.
func NewApp(ctx context.Context, cfg Config) *App {
	if cfg.Routes == nil {
		cfg.Routes = guard.DefaultRoutes()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.DefaultLogger()
	}
	if cfg.Start == "" {
		cfg.Start = guard.ScreenDashboard
	}

	reader := cfg.Service.Session()
	updates, unsubscribe := cfg.Service.SessionUpdates()

	a := &App{
		ctx:         ctx,
		svc:         cfg.Service,
		routes:      cfg.Routes,
		pending:     cfg.Pending,
		logger:      cfg.Logger.Component("tui"),
		state:       reader.Snapshot(),
		updates:     updates,
		unsubscribe: unsubscribe,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(DefaultStyles().Status)),
		styles:      DefaultStyles(),
	}
	a.navigate(cfg.Start)
	return a
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, cfg Config) error {
	app := NewApp(ctx, cfg)
	defer app.Close()
	_, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Close stops the session subscription.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// Screen returns the screen currently shown.
func (a *App) Screen() guard.Screen {
	return a.screen
}

// Decision returns the guard decision behind the current screen.
func (a *App) Decision() guard.Decision {
	return a.decision
}

// Init starts the spinner, the session listener and, when the session has
// not been restored yet, the startup protocol.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spinner.Tick, listen(a.updates)}
	if a.state.IsLoading {
		cmds = append(cmds, a.restore())
	}
	if a.form != nil {
		cmds = append(cmds, a.form.Init())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return a.quit()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case stateMsg:
		a.state = msg.state
		return a, tea.Batch(listen(a.updates), a.reevaluate())

	case restoredMsg:
		if msg.err != nil {
			a.lastErr = "Stored session discarded: " + ux.Describe(msg.err)
		}
		return a, nil

	case loginMsg, signupMsg, verifyMsg, resendMsg, organisationMsg, profileMsg, loggedOutMsg:
		// The operation has already published; act on the latest state
		// rather than waiting for the subscription to catch up.
		a.state = a.svc.Session().Snapshot()
	}

	switch msg := msg.(type) {
	case loginMsg:
		return a, a.afterLogin(msg)
	case signupMsg:
		return a, a.afterSignup(msg)
	case verifyMsg:
		return a, a.afterVerify(msg)
	case resendMsg:
		return a, a.afterResend(msg)
	case organisationMsg:
		return a, a.afterOrganisation(msg)
	case profileMsg:
		a.busy = false
		if msg.err != nil {
			a.lastErr = ux.Describe(msg.err)
		} else {
			a.notice = "Profile refreshed."
		}
		return a, a.navigate(a.screen)
	case loggedOutMsg:
		a.busy = false
		if msg.err != nil {
			a.lastErr = ux.Describe(msg.err)
		}
		a.notice = "Signed out."
		return a, a.navigate(guard.ScreenHome)
	case membersMsg:
		a.busy = false
		if msg.err != nil {
			a.lastErr = ux.Describe(msg.err)
		}
		a.members = msg.members
		return a, nil
	}

	if a.form == nil || a.busy {
		return a, nil
	}
	return a, a.updateForm(msg)
}

func (a *App) quit() (tea.Model, tea.Cmd) {
	a.quitting = true
	return a, tea.Quit
}

func (a *App) updateForm(msg tea.Msg) tea.Cmd {
	model, cmd := a.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		a.form = f
	}
	switch a.form.State {
	case huh.StateCompleted:
		return a.submit()
	case huh.StateAborted:
		a.quitting = true
		return tea.Quit
	}
	return cmd
}

// navigate asks the guard where target leads and shows that screen.
func (a *App) navigate(target guard.Screen) tea.Cmd {
	a.requested = target
	screen, d := guard.Resolve(a.routes, a.state, target, a.pendingActive())
	a.decision = d
	if d.Outcome == guard.OutcomeLoading {
		a.form = nil
		return nil
	}
	if screen != target {
		a.logger.Debug("navigation redirected", "requested", target, "screen", screen, "reason", d.Reason)
	}

	a.screen = screen
	a.busy = false
	a.input = formValues{Email: a.input.Email}
	a.form = a.buildForm(screen)

	var cmds []tea.Cmd
	if a.form != nil {
		cmds = append(cmds, a.form.Init())
	}
	if screen == guard.ScreenMembers {
		a.busy = true
		a.members = nil
		cmds = append(cmds, a.spinner.Tick, a.loadMembers())
	}
	return tea.Batch(cmds...)
}

// reevaluate re-runs the guard after a session change. The current form
// is kept while its screen stays allowed.
func (a *App) reevaluate() tea.Cmd {
	if a.decision.Outcome == guard.OutcomeLoading {
		return a.navigate(a.requested)
	}
	d := guard.Decide(a.routes, a.state, a.screen, a.pendingActive())
	if d.Rendered() {
		return nil
	}
	if !a.state.IsAuthenticated && a.screen != guard.ScreenLogin {
		a.notice = "Your session ended. Please sign in again."
	}
	return a.navigate(a.screen)
}

// rebuild resets the form of the current screen after a failed submit.
func (a *App) rebuild() tea.Cmd {
	a.busy = false
	a.input.Password = ""
	a.form = a.buildForm(a.screen)
	if a.form == nil {
		return nil
	}
	return a.form.Init()
}

func (a *App) pendingActive() bool {
	return a.pending != nil && a.pending.Active()
}

func (a *App) pendingEmail() string {
	if a.pending == nil {
		return ""
	}
	marker, ok, err := a.pending.Get()
	if err != nil {
		a.logger.WithError(err).Warn("reading pending verification marker")
		return ""
	}
	if !ok {
		return ""
	}
	return marker.Email
}

// startBusy shows the spinner while cmd runs.
func (a *App) startBusy(cmd tea.Cmd) tea.Cmd {
	a.busy = true
	a.notice, a.lastErr = "", ""
	return tea.Batch(a.spinner.Tick, cmd)
}

func listen(ch <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg{state: st}
	}
}

// View renders the current screen.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")

	if a.decision.Outcome == guard.OutcomeLoading {
		b.WriteString(a.spinner.View() + " Loading session...\n")
		return b.String()
	}

	b.WriteString(a.styles.Subtitle.Render(screenTitle(a.screen)))
	b.WriteString("\n\n")
	if body := a.renderBody(); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	if a.notice != "" {
		b.WriteString(a.styles.Success.Render(a.notice))
		b.WriteString("\n")
	}
	if a.lastErr != "" {
		b.WriteString(a.styles.Error.Render("Error: ") + a.lastErr)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case a.busy:
		b.WriteString(a.spinner.View() + " Working...\n")
	case a.form != nil:
		b.WriteString(a.form.View())
		b.WriteString("\n")
	}

	b.WriteString(a.styles.Help.Render(a.styles.Key.Render(keys.Quit.Help().Key) + " " + a.styles.KeyDesc.Render(keys.Quit.Help().Desc)))
	return b.String()
}
