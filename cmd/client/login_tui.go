package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type viewState int

const (
	emailView viewState = iota
	passwordView
)

const (
	txtEmailPlaceholder    = "your@email.com"
	txtPasswordPlaceholder = "password"
	txtEmailPrompt         = "Enter your email address"
	txtPasswordPrompt      = "Enter the password for %s"
	txtSigningIn           = "Signing in..."
	txtInvalidEmail        = "Invalid email"
	txtEmptyPassword       = "Password is required"
	txtHelp                = "Press 'Enter' to submit. 'Esc' to go back/quit. 'Ctrl+C' to quit."
)

var (
	focusedStyle     = green
	helpStyle        = gray
	errorTextStyle   = red
	errorHeaderStyle = red.Bold(true)
	spinnerStyle     = cyan
	placeholderStyle = gray
	titleStyle       = cyan.Bold(true)
)

type LoginTUIOpts struct {
	Email          string
	ServerURL      string
	ConfigPath     string
	SubmitHandler  func(email, password string) error
	EmailValidator func(email string) bool
}

type loginModel struct {
	opts *LoginTUIOpts

	emailInput    textinput.Model
	passwordInput textinput.Model
	spinner       spinner.Model

	currentView  viewState
	isLoading    bool
	loggedIn     bool
	errorMessage string
	message      string

	submittedEmail string
}

type loginProcessedMsg struct{ err error }

func newLoginModel(opts *LoginTUIOpts) loginModel {
	email := textinput.New()
	email.Placeholder = txtEmailPlaceholder
	email.SetValue(opts.Email)
	email.Focus()
	email.CharLimit = 64
	email.Width = 64
	email.PromptStyle = focusedStyle
	email.TextStyle = focusedStyle
	email.PlaceholderStyle = placeholderStyle

	password := textinput.New()
	password.Placeholder = txtPasswordPlaceholder
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 32
	password.PromptStyle = focusedStyle
	password.TextStyle = focusedStyle
	password.PlaceholderStyle = placeholderStyle

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return loginModel{
		opts:          opts,
		currentView:   emailView,
		emailInput:    email,
		passwordInput: password,
		spinner:       s,
	}
}

func (m loginModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case m.emailInput.Focused():
			m.errorMessage = ""
			m.emailInput, cmd = m.emailInput.Update(msg)
			cmds = append(cmds, cmd)
		case m.passwordInput.Focused():
			m.errorMessage = ""
			m.passwordInput, cmd = m.passwordInput.Update(msg)
			cmds = append(cmds, cmd)
		}

		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyEsc:
			return m.handleEscapeKey()

		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			switch m.currentView {
			case emailView:
				return m.submitEmail()
			case passwordView:
				return m.submitPassword()
			}
		}

	case spinner.TickMsg:
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)

	case loginProcessedMsg:
		return m.handleLoginMsg(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m loginModel) handleEscapeKey() (tea.Model, tea.Cmd) {
	if m.currentView == passwordView {
		m.currentView = emailView
		m.passwordInput.Reset()
		m.passwordInput.Blur()
		m.emailInput.Focus()
		m.errorMessage = ""
		return m, textinput.Blink
	}
	return m, tea.Quit
}

// submitEmail only validates; nothing is sent until the password is in.
func (m loginModel) submitEmail() (tea.Model, tea.Cmd) {
	email := strings.TrimSpace(m.emailInput.Value())
	if !m.opts.EmailValidator(email) {
		m.errorMessage = txtInvalidEmail
		return m, nil
	}

	m.submittedEmail = email
	m.currentView = passwordView
	m.emailInput.Blur()
	m.passwordInput.Focus()
	return m, textinput.Blink
}

func (m loginModel) submitPassword() (tea.Model, tea.Cmd) {
	password := m.passwordInput.Value()
	if password == "" {
		m.errorMessage = txtEmptyPassword
		return m, nil
	}

	m.errorMessage = ""
	m.isLoading = true
	m.message = txtSigningIn
	m.passwordInput.Blur()

	email := m.submittedEmail
	submit := m.opts.SubmitHandler
	return m, func() tea.Msg {
		return loginProcessedMsg{err: submit(email, password)}
	}
}

func (m loginModel) handleLoginMsg(msg loginProcessedMsg) (tea.Model, tea.Cmd) {
	m.isLoading = false

	if msg.err != nil {
		m.errorMessage = fmt.Sprintf("%s %s", errorHeaderStyle.Render("ERROR:"), msg.err.Error())
		m.passwordInput.Reset()
		m.passwordInput.Focus()
		return m, textinput.Blink
	}

	m.loggedIn = true
	return m, tea.Quit
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("CloudStore"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Server  "), green.Render(m.opts.ServerURL)))
	b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Config  "), green.Render(m.opts.ConfigPath)))
	b.WriteString("\n")

	switch m.currentView {
	case emailView:
		b.WriteString(txtEmailPrompt)
		b.WriteString("\n\n")
		b.WriteString(m.emailInput.View())
	case passwordView:
		b.WriteString(fmt.Sprintf(txtPasswordPrompt, green.Render(m.submittedEmail)))
		b.WriteString("\n\n")
		b.WriteString(m.passwordInput.View())
	}

	if m.isLoading {
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.message))
	}
	if m.errorMessage != "" {
		b.WriteString("\n\n")
		b.WriteString(errorTextStyle.Render(m.errorMessage))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(txtHelp))
	b.WriteString("\n")
	return b.String()
}

// RunLoginTUI asks for email and password until SubmitHandler accepts
// them or the user quits.
func RunLoginTUI(opts LoginTUIOpts) error {
	model, err := tea.NewProgram(newLoginModel(&opts), tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("login tui: %w", err)
	}

	if fm, ok := model.(loginModel); ok && !fm.loggedIn {
		return fmt.Errorf("login cancelled by user")
	}
	return nil
}
