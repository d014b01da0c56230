package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RafaelZelak/agentchat/internal/openai"
)

func TestCountMessages(t *testing.T) {
	c, err := NewCounter("my-azure-deployment")
	require.NoError(t, err)

	assert.Equal(t, 0, c.CountMessages(nil))

	msgs := []openai.Message{
		{Role: openai.RoleUser, Content: "hello world"},
		{Role: openai.RoleAssistant, Content: "hi"},
	}
	want := replyPriming
	for _, m := range msgs {
		want += tokensPerMessage + c.Count(m.Role) + c.Count(m.Content)
	}
	assert.Equal(t, want, c.CountMessages(msgs))
	assert.Greater(t, c.CountMessages(msgs), c.CountMessages(msgs[:1]))
}

func TestCountKnownModel(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count("hello world"))
}
