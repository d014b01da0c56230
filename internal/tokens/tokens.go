// Package tokens conta tokens no formato de chat usando tiktoken.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/RafaelZelak/agentchat/internal/openai"
)

const defaultEncoding = "cl100k_base"

// overhead fixo do formato de chat por mensagem e pela resposta
const (
	tokensPerMessage = 3
	replyPriming     = 3
)

type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter resolve o encoding do modelo; modelos desconhecidos (ex: nomes
// de deployment Azure) usam cl100k_base.
func NewCounter(model string) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("load encoding %s: %w", defaultEncoding, err)
		}
	}
	return &Counter{enc: enc}, nil
}

func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *Counter) CountMessages(msgs []openai.Message) int {
	if len(msgs) == 0 {
		return 0
	}
	n := replyPriming
	for _, m := range msgs {
		n += tokensPerMessage
		n += c.Count(m.Role)
		n += c.Count(m.Content)
	}
	return n
}
