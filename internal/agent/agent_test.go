package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RafaelZelak/agentchat/internal/openai"
	"github.com/RafaelZelak/agentchat/internal/tools"
)

type scriptedLLM struct {
	mu      sync.Mutex
	outputs []string
	calls   [][]openai.Message
	err     error
}

func (s *scriptedLLM) Complete(_ context.Context, msgs []openai.Message, onToken func(string)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msgs)
	if s.err != nil {
		return "", s.err
	}
	out := s.outputs[0]
	if len(s.outputs) > 1 {
		s.outputs = s.outputs[1:]
	}
	if onToken != nil {
		for _, f := range strings.SplitAfter(out, " ") {
			onToken(f)
		}
	}
	return out, nil
}

type fakeMemory struct {
	history []openai.Message
	saved   [][2]string
	err     error
}

func (m *fakeMemory) Messages() []openai.Message { return m.history }

func (m *fakeMemory) SaveContext(_ context.Context, in, out string) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, [2]string{in, out})
	return nil
}

type recorder struct {
	BaseHandler
	stream bool
	events []string
	tokens []string
}

func (r *recorder) StreamTokens() bool { return r.stream }
func (r *recorder) OnChainStart(context.Context, string) {
	r.events = append(r.events, "start")
}
func (r *recorder) OnAgentAction(_ context.Context, a Action) {
	r.events = append(r.events, "action:"+a.Tool)
}
func (r *recorder) OnToolEnd(_ context.Context, tool, out string) {
	r.events = append(r.events, "tool_end:"+out)
}
func (r *recorder) OnAgentFinish(_ context.Context, out string) {
	r.events = append(r.events, "finish:"+out)
}
func (r *recorder) OnChainError(context.Context, error) {
	r.events = append(r.events, "error")
}
func (r *recorder) OnLLMNewToken(_ context.Context, tok string) {
	r.tokens = append(r.tokens, tok)
}

func final(text string) string {
	return "```json\n{\"action\": \"Final Answer\", \"action_input\": \"" + text + "\"}\n```"
}

func call(tool, input string) string {
	return "```json\n{\"action\": \"" + tool + "\", \"action_input\": \"" + input + "\"}\n```"
}

func echoRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(tools.NewFunc("echo", "Repeats the input", func(_ context.Context, in string) (string, error) {
		return "echo: " + in, nil
	}))
	require.NoError(t, err)
	return r
}

func TestRunFinalAnswerSavesMemory(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{final("Hi there")}}
	mem := &fakeMemory{history: []openai.Message{{Role: openai.RoleUser, Content: "SYSTEM PROMPT"}}}
	rec := &recorder{}
	ex := NewExecutor(llm, nil, mem, WithCallbacks(rec))

	out, err := ex.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out)
	assert.Equal(t, [][2]string{{"hello", "Hi there"}}, mem.saved)
	assert.Equal(t, []string{"start", "finish:Hi there"}, rec.events)

	msgs := llm.calls[0]
	require.Len(t, msgs, 3)
	assert.Equal(t, openai.RoleSystem, msgs[0].Role)
	assert.Equal(t, "SYSTEM PROMPT", msgs[1].Content)
	assert.Contains(t, msgs[2].Content, "hello")
	assert.Contains(t, msgs[2].Content, `["Final Answer"]`)
	assert.NotContains(t, msgs[2].Content, "TOOLS\n")
}

func TestRunCallsToolThenAnswers(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{call("echo", "ping"), final("got it")}}
	rec := &recorder{}
	ex := NewExecutor(llm, echoRegistry(t), &fakeMemory{})

	out, err := ex.Run(context.Background(), "say ping", rec)
	require.NoError(t, err)
	assert.Equal(t, "got it", out)
	assert.Equal(t, []string{"start", "action:echo", "tool_end:echo: ping", "finish:got it"}, rec.events)

	require.Len(t, llm.calls, 2)
	assert.Contains(t, llm.calls[0][1].Content, "> echo: Repeats the input")
	second := llm.calls[1]
	require.Len(t, second, 4)
	assert.Equal(t, openai.RoleAssistant, second[2].Role)
	assert.Equal(t, call("echo", "ping"), second[2].Content)
	assert.Contains(t, second[3].Content, "TOOL RESPONSE:")
	assert.Contains(t, second[3].Content, "echo: ping")
}

func TestRunUnknownToolBecomesObservation(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{call("calculator", "2+2"), final("4")}}
	ex := NewExecutor(llm, echoRegistry(t), &fakeMemory{})

	out, err := ex.Run(context.Background(), "2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", out)
	assert.Contains(t, llm.calls[1][3].Content, "calculator is not a valid tool, try one of [echo].")
}

func TestRunToolErrorBecomesObservation(t *testing.T) {
	reg, err := tools.NewRegistry(tools.NewFunc("db", "", func(context.Context, string) (string, error) {
		return "", errors.New("connection refused")
	}))
	require.NoError(t, err)
	llm := &scriptedLLM{outputs: []string{call("db", "x"), final("sorry")}}
	ex := NewExecutor(llm, reg, &fakeMemory{})

	out, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "sorry", out)
	assert.Contains(t, llm.calls[1][3].Content, "connection refused")
}

func TestRunHandlesParsingErrors(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{"plain text, no blob", final("fixed")}}
	ex := NewExecutor(llm, nil, &fakeMemory{})

	out, err := ex.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
	assert.Contains(t, llm.calls[1][3].Content, invalidFormatObservation)
}

func TestRunParsingErrorFailsWhenNotHandled(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{"plain text"}}
	mem := &fakeMemory{}
	rec := &recorder{}
	ex := NewExecutor(llm, nil, mem, WithHandleParsingErrors(false), WithCallbacks(rec))

	_, err := ex.Run(context.Background(), "hi")
	assert.True(t, errors.Is(err, ErrOutputParse))
	assert.Empty(t, mem.saved)
	assert.Equal(t, []string{"start", "error"}, rec.events)
}

func TestRunEarlyStoppingGenerate(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{call("echo", "a"), call("echo", "b"), final("best effort")}}
	ex := NewExecutor(llm, echoRegistry(t), &fakeMemory{}, WithMaxIterations(2))

	out, err := ex.Run(context.Background(), "loop")
	require.NoError(t, err)
	assert.Equal(t, "best effort", out)
	require.Len(t, llm.calls, 3)
	last := llm.calls[2]
	assert.Equal(t, finalAnswerRequest, last[len(last)-1].Content)
}

func TestRunEarlyStoppingGenerateReturnsRawText(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{call("echo", "a"), "  I could not finish.  "}}
	ex := NewExecutor(llm, echoRegistry(t), &fakeMemory{}, WithMaxIterations(1))

	out, err := ex.Run(context.Background(), "loop")
	require.NoError(t, err)
	assert.Equal(t, "I could not finish.", out)
}

func TestRunEarlyStoppingForce(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{call("echo", "a")}}
	ex := NewExecutor(llm, echoRegistry(t), &fakeMemory{}, WithMaxIterations(3), WithEarlyStopping(EarlyStopForce))

	out, err := ex.Run(context.Background(), "loop")
	require.NoError(t, err)
	assert.Equal(t, stoppedMessage, out)
	assert.Len(t, llm.calls, 3)
}

func TestRunStreamsTokensToStreamingHandlers(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{final("a b c")}}
	quiet := &recorder{}
	loud := &recorder{stream: true}
	ex := NewExecutor(llm, nil, &fakeMemory{}, WithCallbacks(quiet))

	_, err := ex.Run(context.Background(), "x", loud)
	require.NoError(t, err)
	assert.NotEmpty(t, loud.tokens)
	assert.Equal(t, final("a b c"), strings.Join(loud.tokens, ""))
	assert.Equal(t, loud.tokens, quiet.tokens)
}

func TestRunLLMErrorIsReturned(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("503")}
	ex := NewExecutor(llm, nil, &fakeMemory{})
	_, err := ex.Run(context.Background(), "x")
	assert.Error(t, err)
}

func TestRunMemoryErrorIsReturned(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{final("ok")}}
	ex := NewExecutor(llm, nil, &fakeMemory{err: errors.New("summary failed")})
	_, err := ex.Run(context.Background(), "x")
	assert.ErrorContains(t, err, "save memory")
}
