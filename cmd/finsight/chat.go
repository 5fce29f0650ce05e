// This file contains the interactive chat interface.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"finsight/internal/agent"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	faintStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	csvStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

type chatMessage struct {
	role    string // "user" or "assistant"
	content string
	time    time.Time
}

// Messages for tea updates
type (
	responseMsg *agent.Response
	errorMsg    error
)

type chatModel struct {
	ctx       context.Context
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model

	eng *engine
	fc  agent.FilterContext

	history   []chatMessage
	isLoading bool
	ready     bool
	width     int
	height    int
	err       error
}

// runChat starts the interactive chat interface. The filter scope comes
// from --banks/--accounts, falling back to every ID in the store.
func runChat(ctx context.Context) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	fc, err := resolveChatScope(ctx, eng)
	if err != nil {
		return err
	}

	model := newChatModel(ctx, eng, fc)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// resolveChatScope discovers the filter scope from the store when the
// scope flags were not given.
func resolveChatScope(ctx context.Context, eng *engine) (agent.FilterContext, error) {
	fc, err := filterContextFromFlags()
	if err == nil {
		return fc, nil
	}
	if len(bankIDs) > 0 || len(accountIDs) > 0 {
		// A partial scope was given explicitly; do not widen it.
		return fc, err
	}
	if refDate != "" {
		if _, perr := time.Parse("2006-01-02", refDate); perr != nil {
			return fc, err
		}
	}

	banks, berr := eng.store.BankIDs(ctx)
	if berr != nil {
		return fc, berr
	}
	accounts, aerr := eng.store.AccountIDs(ctx, banks)
	if aerr != nil {
		return fc, aerr
	}
	if len(banks) == 0 || len(accounts) == 0 {
		return fc, fmt.Errorf("no transactions in the store; run 'finsight seed' first")
	}

	logger.Info("chat scope discovered from store",
		zap.Int64s("banks", banks),
		zap.Int64s("accounts", accounts))

	fc.BankIDs = banks
	fc.AccountIDs = accounts
	return fc, fc.Validate()
}

func newChatModel(ctx context.Context, eng *engine, fc agent.FilterContext) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about your transactions... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 1024
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.SetContent("")

	greeting := fmt.Sprintf(
		"Hello! Ask me about the transactions for banks [%s] and accounts [%s].\nType /help for commands.",
		fc.BankIDList(), fc.AccountIDList())

	return chatModel{
		ctx:       ctx,
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		eng:       eng,
		fc:        fc,
		history: []chatMessage{
			{role: "assistant", content: greeting, time: time.Now()},
		},
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}
		}

		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - inputHeight
		}
		m.textinput.Width = msg.Width - 4
		m.viewport.SetContent(m.renderHistory())

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case responseMsg:
		m.isLoading = false
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: renderChatResponse((*agent.Response)(msg)),
			time:    time.Now(),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case errorMsg:
		m.isLoading = false
		m.err = msg
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: errorStyle.Render(renderProcessError(msg).Error()),
			time:    time.Now(),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}
	m.textinput.Reset()

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.history = append(m.history, chatMessage{role: "user", content: input, time: time.Now()})
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	m.isLoading = true

	return m, tea.Batch(
		m.spinner.Tick,
		m.processQuestion(input),
	)
}

func (m chatModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	var reply string
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/help":
		reply = strings.Join([]string{
			"/reset   forget the conversation so far",
			"/scope   show the banks and accounts in scope",
			"/quit    exit",
		}, "\n")
	case "/reset":
		m.eng.orchestrator.History().Reset()
		reply = "Conversation cleared."
	case "/scope":
		reply = fmt.Sprintf("banks [%s], accounts [%s], reference date %s",
			m.fc.BankIDList(), m.fc.AccountIDList(),
			m.fc.ReferenceDate.Format("2006-01-02"))
	case "/quit", "/exit":
		return m, tea.Quit
	default:
		reply = fmt.Sprintf("Unknown command %q. Type /help for commands.", input)
	}

	m.history = append(m.history, chatMessage{role: "assistant", content: reply, time: time.Now()})
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	return m, nil
}

func (m chatModel) processQuestion(question string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.eng.orchestrator.Process(m.ctx, question, m.fc)
		if err != nil {
			return errorMsg(err)
		}
		return responseMsg(resp)
	}
}

// renderChatResponse flattens a response into viewport text. Record sets
// show the preview inline and write the full export to disk.
func renderChatResponse(resp *agent.Response) string {
	if resp.Kind != agent.ResponseRecords {
		return resp.Answer()
	}

	var sb strings.Builder
	sb.WriteString(resp.Records.Intro)
	sb.WriteString("\n\n")
	sb.WriteString(csvStyle.Render(strings.TrimRight(resp.Records.PreviewCSV, "\n")))
	if path, err := writeExport(resp); err == nil {
		sb.WriteString(fmt.Sprintf("\n\nFull export (%d rows): %s", resp.Records.RowCount, path))
	} else {
		logger.Warn("failed to write export file", zap.Error(err))
	}
	return sb.String()
}

func (m chatModel) renderHistory() string {
	var sb strings.Builder
	for i, msg := range m.history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		label := assistantStyle.Render("finsight")
		if msg.role == "user" {
			label = userStyle.Render("you")
		}
		sb.WriteString(label)
		sb.WriteString(faintStyle.Render(" " + msg.time.Format("15:04")))
		sb.WriteString("\n")
		sb.WriteString(msg.content)
	}
	return sb.String()
}

func (m chatModel) View() string {
	if !m.ready {
		return "starting..."
	}

	header := titleStyle.Render("finsight") +
		faintStyle.Render(fmt.Sprintf("  banks [%s]  accounts [%s]", m.fc.BankIDList(), m.fc.AccountIDList()))

	input := m.textinput.View()
	if m.isLoading {
		input = m.spinner.View() + " thinking..."
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", header, m.viewport.View(), input)
}
