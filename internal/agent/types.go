package agent

import "github.com/RafaelZelak/agentchat/internal/openai"

// Action é uma decisão do modelo: chamar uma tool ou responder
type Action struct {
	Tool   string `json:"tool"`
	Input  string `json:"tool_input"`
	Log    string `json:"log,omitempty"`
	Finish bool   `json:"-"`
}

// Step é uma ação já executada e o que ela devolveu
type Step struct {
	Action      Action `json:"action"`
	Observation string `json:"observation"`
}

type builder struct {
	system  []openai.Message
	history []openai.Message
	user    openai.Message
	scratch []openai.Message
}

func newBuilder(prefix string) *builder {
	b := &builder{system: make([]openai.Message, 0, 2)}
	if prefix != "" {
		b.system = append(b.system, openai.Message{Role: openai.RoleSystem, Content: prefix})
	}
	return b
}

func (b *builder) withHistory(msgs []openai.Message) *builder {
	b.history = msgs
	return b
}

func (b *builder) withUser(text string) *builder {
	b.user = openai.Message{Role: openai.RoleUser, Content: text}
	return b
}

// withSteps adiciona o scratchpad: a saída do modelo e a resposta da tool
func (b *builder) withSteps(steps []Step) *builder {
	for _, s := range steps {
		b.scratch = append(b.scratch,
			openai.Message{Role: openai.RoleAssistant, Content: s.Action.Log},
			openai.Message{Role: openai.RoleUser, Content: formatObservation(s.Observation)},
		)
	}
	return b
}

func (b *builder) messages(extra ...openai.Message) []openai.Message {
	out := make([]openai.Message, 0, len(b.system)+len(b.history)+len(b.scratch)+1+len(extra))
	out = append(out, b.system...)
	out = append(out, b.history...)
	out = append(out, b.user)
	out = append(out, b.scratch...)
	return append(out, extra...)
}
