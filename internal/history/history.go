package history

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	TypeHuman  = "human"
	TypeAI     = "ai"
	TypeSystem = "system"
)

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ChatHistory é o transcript persistido de uma sessão
type ChatHistory interface {
	AddUserMessage(ctx context.Context, text string) error
	AddAIMessage(ctx context.Context, text string) error
	Messages(ctx context.Context) ([]Message, error)
	Clear(ctx context.Context) error
}

type Store interface {
	ForSession(sessionID string) ChatHistory
	Close() error
}

// formato gravado na coluna message: {"type": ..., "data": {"content": ...}}
type storedMessage struct {
	Type string `json:"type"`
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

func encodeMessage(m Message) (string, error) {
	var sm storedMessage
	sm.Type = m.Type
	sm.Data.Content = m.Content
	js, err := json.Marshal(sm)
	if err != nil {
		return "", err
	}
	return string(js), nil
}

func decodeMessage(raw []byte) (Message, error) {
	var sm storedMessage
	if err := json.Unmarshal(raw, &sm); err != nil {
		return Message{}, fmt.Errorf("decode stored message: %w", err)
	}
	return Message{Type: sm.Type, Content: sm.Data.Content}, nil
}
