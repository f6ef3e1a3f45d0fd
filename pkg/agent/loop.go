package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/filotex/ordermind/pkg/chat"
	"github.com/filotex/ordermind/pkg/draft"
	"github.com/filotex/ordermind/pkg/planner"
)

const (
	// maxRounds bounds planner invocations per turn, maxToolCalls bounds
	// executed tools per turn. Either limit ends the loop.
	maxRounds     = 10
	maxToolCalls  = 50
	historyWindow = 8
	contentChunk  = 50
)

// Event is one streamed unit of a turn.
type Event struct {
	Type    string `json:"type"`
	Tool    string `json:"tool,omitempty"`
	Content string `json:"content,omitempty"`
}

const (
	EventToolCall = "tool_call"
	EventContent  = "content"
	EventDone     = "done"
	EventError    = "error"
)

// Emitter receives events as the turn progresses.
type Emitter func(Event)

// Runner drives one conversation turn: it feeds the planner the system
// prompt, the order state and recent history, executes proposed tool calls in
// order, and streams the final answer.
type Runner struct {
	registry  *Registry
	toolset   *Toolset
	chats     *chat.Store
	drafts    *draft.Store
	audit     *Audit
	clientFor func(model string) planner.Client
	logger    *slog.Logger
}

func NewRunner(registry *Registry, toolset *Toolset, chats *chat.Store, drafts *draft.Store, audit *Audit, clientFor func(model string) planner.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry:  registry,
		toolset:   toolset,
		chats:     chats,
		drafts:    drafts,
		audit:     audit,
		clientFor: clientFor,
		logger:    logger,
	}
}

// RunTurn processes one user message. The user message is persisted up front
// and the assistant answer is persisted before the done event is emitted, so
// a disconnecting client never loses the transcript. Every turn ends with a
// terminal done or error event.
func (r *Runner) RunTurn(ctx context.Context, conversationID, userText string, emit Emitter) error {
	terminal := false
	wrapped := func(e Event) {
		if e.Type == EventDone || e.Type == EventError {
			terminal = true
		}
		emit(e)
	}
	err := r.runTurn(ctx, conversationID, userText, wrapped)
	if err != nil && !terminal {
		emit(Event{Type: EventError, Content: "The assistant could not process this message. Please retry."})
	}
	return err
}

func (r *Runner) runTurn(ctx context.Context, conversationID, userText string, emit Emitter) error {
	// Dispatched tool calls run to completion and the answer is persisted
	// even when the caller disconnects mid-turn; an aborted ERP submit with
	// an uncleared draft would duplicate the order on retry. The credential
	// and request id survive the detach.
	ctx = context.WithoutCancel(ctx)

	conv, err := r.chats.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	agentDef, ok := r.registry.Agent(conv.AgentID)
	if !ok {
		return fmt.Errorf("agent: conversation %s references unknown agent %q", conversationID, conv.AgentID)
	}
	if _, err := r.chats.AppendMessage(ctx, conversationID, chat.RoleUser, userText); err != nil {
		return err
	}

	client := r.clientFor(agentDef.Model)
	tools := r.registry.Tools(agentDef.Category)

	transcript, err := r.initialTranscript(ctx, conversationID)
	if err != nil {
		return err
	}

	toolBudget := maxToolCalls
	for round := 0; round < maxRounds; round++ {
		msgs, err := r.withSystemPrompt(ctx, agentDef, conversationID, transcript)
		if err != nil {
			return err
		}

		// Out of tool budget: force a plain answer.
		roundTools := tools
		if toolBudget <= 0 || round == maxRounds-1 {
			roundTools = nil
		}

		resp, err := client.Chat(ctx, msgs, roundTools, nil)
		if err != nil {
			r.logger.Error("turn.planner_failed", "conversation_id", conversationID, "round", round, "error", err)
			emit(Event{Type: EventError, Content: "The assistant is temporarily unavailable. Please retry."})
			return err
		}

		if len(resp.ToolCalls) == 0 {
			return r.finish(ctx, conversationID, resp.Content, emit)
		}

		transcript = append(transcript, planner.Message{
			Role:               planner.RoleAssistant,
			Content:            resp.Content,
			AssistantToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			if toolBudget <= 0 {
				transcript = append(transcript, planner.Message{
					Role:       planner.RoleTool,
					ToolCallID: call.ID,
					Content:    "Tool budget for this turn is exhausted. Answer with what you have.",
				})
				continue
			}
			toolBudget--
			result := r.execute(ctx, conversationID, call, emit)
			transcript = append(transcript, planner.Message{
				Role:       planner.RoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	emit(Event{Type: EventError, Content: "The assistant could not complete this request. Please rephrase."})
	return fmt.Errorf("agent: turn for %s exceeded %d rounds", conversationID, maxRounds)
}

// execute validates and runs one tool call, recording it in the audit trail.
// Handler failures come back as result strings; only infrastructure errors
// are reported as such.
func (r *Runner) execute(ctx context.Context, conversationID string, call planner.ToolCall, emit Emitter) string {
	emit(Event{Type: EventToolCall, Tool: call.Name})
	start := time.Now()

	var result string
	args, err := r.registry.ValidateArgs(call.Name, call.Arguments)
	if err != nil {
		result = fmt.Sprintf("ERROR: %v", err)
	} else {
		result, err = r.toolset.Dispatch(ctx, conversationID, call.Name, args)
		if err != nil {
			r.logger.Error("tool.dispatch_failed", "conversation_id", conversationID, "tool", call.Name, "error", err)
			result = "ERROR: internal failure while running the tool. Tell the user to retry."
		}
	}
	elapsed := time.Since(start)

	r.logger.Info("tool.complete",
		"conversation_id", conversationID,
		"tool", call.Name,
		"ok", err == nil,
		"duration_ms", elapsed.Milliseconds(),
	)
	if auditErr := r.audit.Record(ctx, Invocation{
		ConversationID: conversationID,
		Tool:           call.Name,
		Arguments:      string(call.Arguments),
		Result:         result,
		OK:             err == nil,
		Duration:       elapsed,
	}); auditErr != nil {
		r.logger.Warn("tool.audit_failed", "conversation_id", conversationID, "tool", call.Name, "error", auditErr)
	}
	return result
}

func (r *Runner) finish(ctx context.Context, conversationID, content string, emit Emitter) error {
	if content == "" {
		content = "Done."
	}
	if _, err := r.chats.AppendMessage(ctx, conversationID, chat.RoleAssistant, content); err != nil {
		return err
	}
	for start := 0; start < len(content); {
		end := start + contentChunk
		if end >= len(content) {
			end = len(content)
		} else {
			// Never split a multi-byte rune across chunks.
			for end > start && !utf8.RuneStart(content[end]) {
				end--
			}
			if end == start {
				end = start + contentChunk
			}
		}
		emit(Event{Type: EventContent, Content: content[start:end]})
		start = end
	}
	emit(Event{Type: EventDone})
	return nil
}

// initialTranscript loads the recent history window, which already includes
// the just-persisted user message.
func (r *Runner) initialTranscript(ctx context.Context, conversationID string) ([]planner.Message, error) {
	history, err := r.chats.RecentMessages(ctx, conversationID, historyWindow)
	if err != nil {
		return nil, err
	}
	msgs := make([]planner.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, planner.Message{Role: m.Role, Content: m.Content})
	}
	return msgs, nil
}

// withSystemPrompt prepends a fresh system message so every round sees the
// order state as it currently is, not as it was when the turn started.
func (r *Runner) withSystemPrompt(ctx context.Context, agentDef *Agent, conversationID string, transcript []planner.Message) ([]planner.Message, error) {
	var d *draft.Draft
	if agentDef.Category == CategorySales {
		var err error
		d, err = r.drafts.GetOrCreate(ctx, conversationID)
		if err != nil {
			return nil, err
		}
	}
	msgs := make([]planner.Message, 0, len(transcript)+1)
	msgs = append(msgs, planner.Message{Role: planner.RoleSystem, Content: buildSystemPrompt(agentDef, d)})
	return append(msgs, transcript...), nil
}
