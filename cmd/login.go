package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
)

func newLoginCmd(app *app) *cobra.Command {
	var username string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.manager.Initialize(cmd.Context())

			if password == "" {
				entered, err := readPassword(cmd)
				if err != nil {
					return err
				}
				password = entered
			}

			identity, err := runSignIn(cmd.Context(), cmd.OutOrStdout(), username, func(ctx context.Context) (domain.UserIdentity, error) {
				return app.manager.Login(ctx, username, password)
			})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", loginLabel(identity, username))
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account username")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

type signInPhase int

const (
	signInRunning signInPhase = iota
	signInFinished
)

type signInResultMsg struct {
	identity domain.UserIdentity
	err      error
}

// signInModel animates the credential exchange and keeps its outcome, so
// the final frame reflects a failure before the error itself is reported.
type signInModel struct {
	spin     spinner.Model
	username string
	exchange tea.Cmd
	phase    signInPhase
	identity domain.UserIdentity
	err      error
}

func newSignInModel(username string, exchange tea.Cmd) signInModel {
	return signInModel{
		spin: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		username: username,
		exchange: exchange,
	}
}

func (m signInModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.exchange)
}

func (m signInModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case signInResultMsg:
		m.phase = signInFinished
		m.identity = msg.identity
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m signInModel) View() string {
	if m.phase == signInFinished {
		if m.err != nil {
			return lipgloss.NewStyle().Faint(true).Render("Sign-in failed.") + "\n"
		}
		return ""
	}

	return fmt.Sprintf("%s Signing in as %s...", m.spin.View(), m.username)
}

func runSignIn(ctx context.Context, output io.Writer, username string, attempt func(context.Context) (domain.UserIdentity, error)) (domain.UserIdentity, error) {
	exchange := func() tea.Msg {
		identity, err := attempt(ctx)
		return signInResultMsg{identity: identity, err: err}
	}

	p := tea.NewProgram(
		newSignInModel(username, exchange),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return domain.UserIdentity{}, err
	}

	result, ok := finalModel.(signInModel)
	if !ok {
		return domain.UserIdentity{}, fmt.Errorf("unexpected final sign-in model type %T", finalModel)
	}

	return result.identity, result.err
}

func readPassword(cmd *cobra.Command) (string, error) {
	_, _ = fmt.Fprint(cmd.OutOrStdout(), "Password: ")

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}

	return password, nil
}

func loginLabel(identity domain.UserIdentity, fallback string) string {
	if identity.Username != "" {
		return identity.Username
	}
	return fallback
}
