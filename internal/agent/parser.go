package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"
)

var ErrOutputParse = errors.New("could not parse agent output")

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// parseOutput lê o blob {"action": ..., "action_input": ...} da resposta do
// modelo, com ou sem cercas de markdown.
func parseOutput(text string) (Action, error) {
	blob := extractJSON(text)
	if blob == "" {
		return Action{}, fmt.Errorf("%w: no json blob in %q", ErrOutputParse, truncate(text, 200))
	}

	var raw struct {
		Action      string          `json:"action"`
		ActionInput json.RawMessage `json:"action_input"`
	}
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(blob)
		if repairErr != nil {
			return Action{}, fmt.Errorf("%w: %v", ErrOutputParse, err)
		}
		if err := json.Unmarshal([]byte(fixed), &raw); err != nil {
			return Action{}, fmt.Errorf("%w: %v", ErrOutputParse, err)
		}
	}
	if strings.TrimSpace(raw.Action) == "" {
		return Action{}, fmt.Errorf("%w: missing action", ErrOutputParse)
	}

	a := Action{
		Tool:  strings.TrimSpace(raw.Action),
		Input: decodeInput(raw.ActionInput),
		Log:   text,
	}
	if strings.EqualFold(normalizeChoice(a.Tool), strings.ToLower(FinalAnswer)) {
		a.Finish = true
	}
	return a, nil
}

func extractJSON(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		// objeto truncado: o jsonrepair tenta fechar
		if start >= 0 {
			return strings.TrimSpace(text[start:])
		}
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

// decodeInput aceita string JSON ou qualquer outro valor, que é repassado
// como texto JSON.
func decodeInput(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func normalizeChoice(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, ".,;:!?)('\"`”’“‘ ")
}

// matchTool tolera diferenças de caixa e pontuação no nome escolhido
func matchTool(raw string, names []string) (string, bool) {
	norm := normalizeChoice(raw)
	for _, n := range names {
		if n == raw {
			return n, true
		}
	}
	for _, n := range names {
		if strings.EqualFold(normalizeChoice(n), norm) {
			return n, true
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// volta até o início de uma runa
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
