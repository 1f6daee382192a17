// Package repair coerces a usable final answer out of a model run. The
// backend sometimes returns tool-call objects without prose, raw
// tool-invocation JSON as assistant text, leaked tool-routing chatter, or
// a notes listing without the follow-up content fetch. The pipeline
// detects each case and issues a bounded number of targeted follow-up
// turns; it never fabricates content.
package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/promptsched/internal/modelclient"
	"github.com/nextlevelbuilder/promptsched/internal/store"
)

// EmptyToolCallFallback is substituted when the model produced only tool
// calls and no final text even after the retry turn.
const EmptyToolCallFallback = "Scheduled prompt completed, but the model returned only tool calls and no final text."

// rawToolJSONContinuation is the user turn appended when the model leaked
// a raw tool invocation as assistant text.
const rawToolJSONContinuation = "Execute the requested tool call(s) above, then answer the original user request in plain language. Do not return tool-call JSON."

// chatterContinuation is the user turn appended when the model narrated
// malformed tool-call chatter instead of executing the tools.
const chatterContinuation = "Your previous attempt produced malformed tool-call chatter instead of executing the tools. Execute the intended tool call(s) now, then answer the original user request in plain language. Do not include tool-call syntax, commentary, or JSON in your reply."

// maxFollowUps bounds the extra completion calls per run across all
// stages.
const maxFollowUps = 4

// maxNoteFollowUps bounds the notes-tool follow-up loop.
const maxNoteFollowUps = 2

// maxHintedUUIDs caps how many candidate note UUIDs a follow-up lists.
const maxHintedUUIDs = 5

// ResponseKind classifies the first response for repair routing.
type ResponseKind int

const (
	// KindPlainText is a usable answer; no repair needed.
	KindPlainText ResponseKind = iota
	// KindEmptyWithToolCalls is an empty final with tool_calls attached.
	KindEmptyWithToolCalls
	// KindRawToolJSON is a tool invocation leaked as assistant text.
	KindRawToolJSON
	// KindMalformedChatter is tool-routing syntax leaked into prose.
	KindMalformedChatter
)

// Classify tags a response by the repair it needs, applying the same
// detectors as the pipeline stages.
func Classify(resp *modelclient.Response, actionTools []string) ResponseKind {
	content := resp.AssistantContent()
	switch {
	case content == "" && len(resp.ToolCalls()) > 0:
		return KindEmptyWithToolCalls
	case isRawToolJSON(strings.TrimSpace(content)):
		return KindRawToolJSON
	case isMalformedChatter(content, actionTools):
		return KindMalformedChatter
	default:
		return KindPlainText
	}
}

// Completer issues chat completions on behalf of a user.
type Completer interface {
	Complete(ctx context.Context, userID string, req *modelclient.Request) (*modelclient.Response, error)
}

// Pipeline runs the repair state machine over one scheduled-prompt
// execution.
type Pipeline struct {
	client Completer
}

// NewPipeline creates a Pipeline over the given completion client.
func NewPipeline(client Completer) *Pipeline {
	return &Pipeline{client: client}
}

// Result is the settled outcome of a run: final assistant text, the
// sources attached to the response that produced it, and the number of
// completion calls issued (initial call included).
type Result struct {
	Content string
	Sources []store.Source
	Calls   int
}

// Run issues the initial completion and applies stages S1-S4 in order.
// actionTools is the configured tool list minus self-scheduling tools;
// mode is the job's function-calling mode. An error is returned only when
// the initial call fails; follow-up failures are logged and the pipeline
// settles on what it has.
func (p *Pipeline) Run(ctx context.Context, userID string, req *modelclient.Request, actionTools []string, mode string) (*Result, error) {
	// S0: initial call. The function_calling hint is set for explicit
	// modes and omitted entirely for "auto".
	initial := req.Clone()
	if mode == store.FunctionCallingDefault || mode == store.FunctionCallingNative {
		initial.Params = &modelclient.Params{FunctionCalling: mode}
	} else {
		initial.Params = nil
	}

	resp, err := p.client.Complete(ctx, userID, initial)
	if err != nil {
		return nil, err
	}
	content := resp.AssistantContent()
	followUps := 0

	// S1: empty final with tool calls. Re-issuing with
	// function_calling=default lets the backend synthesize final text
	// after executing the tools.
	if content == "" && len(resp.ToolCalls()) > 0 && mode != store.FunctionCallingDefault && followUps < maxFollowUps {
		retry := initial.Clone()
		retry.Params = &modelclient.Params{FunctionCalling: store.FunctionCallingDefault}
		followUps++
		if r, rerr := p.client.Complete(ctx, userID, retry); rerr != nil {
			slog.Warn("tool-call retry failed", "error", rerr)
		} else {
			resp = r
			content = r.AssistantContent()
		}
	}
	if content == "" {
		content = EmptyToolCallFallback
	}

	// S2: raw tool-invocation JSON leaked as the assistant message.
	if isRawToolJSON(strings.TrimSpace(content)) && len(actionTools) > 0 && followUps < maxFollowUps {
		cont := continuationRequest(initial, actionTools)
		cont.Messages = append(cont.Messages,
			modelclient.Message{Role: "assistant", Content: content},
			modelclient.Message{Role: "user", Content: rawToolJSONContinuation},
		)
		followUps++
		if r, rerr := p.client.Complete(ctx, userID, cont); rerr != nil {
			slog.Warn("raw tool-JSON continuation failed", "error", rerr)
		} else if c := r.AssistantContent(); c != "" {
			resp = r
			content = c
		}
	}

	// S3: malformed tool chatter. Force a continuation, then strip any
	// residual chatter whether or not the continuation replaced the text.
	if isMalformedChatter(content, actionTools) {
		if followUps < maxFollowUps {
			cont := continuationRequest(initial, actionTools)
			cont.Messages = append(cont.Messages,
				modelclient.Message{Role: "user", Content: chatterContinuationText(resp.Sources, actionTools)},
			)
			followUps++
			if r, rerr := p.client.Complete(ctx, userID, cont); rerr != nil {
				slog.Warn("chatter continuation failed", "error", rerr)
			} else if c := r.AssistantContent(); c != "" {
				resp = r
				content = c
			}
		}
		content = SanitizeToolChatter(content, actionTools)
	}

	// S4: notes-tool follow-up loop. When a listing ran without a
	// successful content fetch, force get_note with the listed UUIDs.
	if hasNotesTool(actionTools) {
		for i := 0; i < maxNoteFollowUps && followUps < maxFollowUps; i++ {
			state := analyzeNoteSources(resp.Sources)
			if !state.needsFollowUp() {
				break
			}
			cont := continuationRequest(initial, actionTools)
			cont.Messages = append(cont.Messages,
				modelclient.Message{Role: "user", Content: noteFollowUpMessage(state.listIDs)},
			)
			followUps++
			r, rerr := p.client.Complete(ctx, userID, cont)
			if rerr != nil {
				slog.Warn("notes follow-up failed", "error", rerr)
				break
			}
			c := r.AssistantContent()
			if c == "" {
				break
			}
			resp = r
			content = c
		}
	}

	return &Result{
		Content: content,
		Sources: resp.Sources,
		Calls:   followUps + 1,
	}, nil
}

// continuationRequest builds a follow-up turn over the original messages
// with function calling forced to default and the action tools attached.
func continuationRequest(initial *modelclient.Request, actionTools []string) *modelclient.Request {
	cont := initial.Clone()
	cont.Params = &modelclient.Params{FunctionCalling: store.FunctionCallingDefault}
	cont.ToolIDs = append([]string(nil), actionTools...)
	return cont
}

// isRawToolJSON reports whether trimmed content parses as a JSON object
// carrying a "tool" or "tool_calls" key.
func isRawToolJSON(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return false
	}
	_, hasTool := obj["tool"]
	_, hasToolCalls := obj["tool_calls"]
	return hasTool || hasToolCalls
}

// chatterMarkers are the substrings whose presence (together with a tool
// mention) flags malformed tool chatter. The bare "json" marker is broad
// and can fire on benign mentions; it matches the backend's behavior.
var chatterMarkers = []string{
	"to=",
	"tool call",
	"tool_call",
	"arguments",
	"need proper json",
	"do not output json",
	"json",
}

// isMalformedChatter reports whether content contains a chatter marker
// and mentions at least one configured tool.
func isMalformedChatter(content string, actionTools []string) bool {
	l := strings.ToLower(content)
	if !mentionsAnyTool(l, actionTools) {
		return false
	}
	for _, marker := range chatterMarkers {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}

// chatterContinuationText builds the S3 user turn, with a note-UUID hint
// when notes tools are configured and prior listings exposed IDs.
func chatterContinuationText(sources []store.Source, actionTools []string) string {
	text := chatterContinuation
	if hasNotesTool(actionTools) {
		state := analyzeNoteSources(sources)
		if len(state.listIDs) > 0 {
			text += fmt.Sprintf(" Candidate note UUIDs seen so far: %s. Use the %s tool with one of them to fetch the note content.",
				strings.Join(capIDs(state.listIDs), ", "), toolGetNote)
		}
	}
	return text
}

// noteFollowUpMessage builds the S4 user turn forcing a get_note call.
func noteFollowUpMessage(listIDs []string) string {
	return fmt.Sprintf(
		"The notes listing returned note UUIDs but no note content was successfully fetched. "+
			"You MUST call get_note with parameter note_id set to one of these UUIDs: %s. "+
			"Use the exact UUID from the ID column, not the note title. "+
			"Do not call list_my_notes or search_notes again unless every listed UUID fails.",
		strings.Join(capIDs(listIDs), ", "))
}

func capIDs(ids []string) []string {
	if len(ids) > maxHintedUUIDs {
		return ids[:maxHintedUUIDs]
	}
	return ids
}
