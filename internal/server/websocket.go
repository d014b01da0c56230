package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/RafaelZelak/agentchat/internal/agent"
	"github.com/RafaelZelak/agentchat/internal/logger"
)

const (
	writeWait = 10 * time.Second
	// maior frame aceito do cliente
	maxFrameBytes = 1 << 20
)

// Event é um frame intermediário enviado durante a execução do agente
type Event struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	Token     string `json:"token,omitempty"`
	Tool      string `json:"tool,omitempty"`
	Input     string `json:"input,omitempty"`
	Output    string `json:"output,omitempty"`
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

// WSHandler repassa tokens e passos do agente para o websocket da requisição
type WSHandler struct {
	agent.BaseHandler
	ws        *wsConn
	sessionID string
}

func newWSHandler(ws *wsConn, sessionID string) *WSHandler {
	return &WSHandler{ws: ws, sessionID: sessionID}
}

func (h *WSHandler) StreamTokens() bool { return true }

func (h *WSHandler) OnLLMNewToken(_ context.Context, token string) {
	h.emit(Event{Event: "llm_token", Token: token})
}

func (h *WSHandler) OnAgentAction(_ context.Context, a agent.Action) {
	h.emit(Event{Event: "tool_start", Tool: a.Tool, Input: a.Input})
}

func (h *WSHandler) OnToolEnd(_ context.Context, tool, output string) {
	h.emit(Event{Event: "tool_end", Tool: tool, Output: output})
}

func (h *WSHandler) emit(e Event) {
	e.SessionID = h.sessionID
	if err := h.ws.send(e); err != nil {
		logger.Debug("websocket event dropped", "session_id", h.sessionID, "err", err)
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ws := &wsConn{conn: conn}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", "err", err)
			} else {
				logger.Info("websocket disconnect")
			}
			return
		}
		var req MessageReq
		err = json.Unmarshal(data, &req)
		if err == nil {
			err = s.handleFrame(ctx, ws, req)
		}
		if err != nil {
			logger.Error("websocket message failed", "session_id", req.ID, "err", err)
			if sendErr := ws.send(ErrorRes{Error: err.Error()}); sendErr != nil {
				return
			}
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, ws *wsConn, req MessageReq) error {
	if req.ID == "" || req.Text == "" {
		return errors.New("id and text are required")
	}

	created, err := s.sessions.Open(ctx, req.ID)
	if err != nil {
		return err
	}
	if created {
		if err := ws.send(MessageRes{Result: "Enabled Tools: " + pyList(s.sessions.ToolNames())}); err != nil {
			return err
		}
	}

	reply, err := s.sessions.Ask(ctx, req.ID, req.Text, newWSHandler(ws, req.ID))
	if err != nil {
		return err
	}
	return ws.send(MessageRes{Result: reply})
}

// pyList formata como a lista de nomes sempre foi exibida aos clientes: ['a', 'b']
func pyList(items []string) string {
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
	}
	return "[" + strings.Join(q, ", ") + "]"
}
