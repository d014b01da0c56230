package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RafaelZelak/agentchat/internal/history"
	"github.com/RafaelZelak/agentchat/internal/logger"
	"github.com/RafaelZelak/agentchat/internal/tools"
)

type MessageReq struct {
	ID   string `json:"id" binding:"required"`
	Text string `json:"text" binding:"required"`
}

type MessageRes struct {
	Result string `json:"result"`
}

type ErrorRes struct {
	Error string `json:"error"`
}

type ToolsRes struct {
	Tools []tools.Info `json:"tools"`
}

type HistoryRes struct {
	ID       string            `json:"id"`
	Messages []history.Message `json:"messages"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRun(c *gin.Context) {
	var req MessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorRes{Error: err.Error()})
		return
	}

	reply, err := s.sessions.Ask(c.Request.Context(), req.ID, req.Text)
	if err != nil {
		logger.Error("run failed", "session_id", req.ID, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorRes{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageRes{Result: reply})
}

func (s *Server) handleTools(c *gin.Context) {
	c.JSON(http.StatusOK, ToolsRes{Tools: s.sessions.ToolInfos()})
}

func (s *Server) handleHistory(c *gin.Context) {
	id := c.Param("id")
	msgs, err := s.sessions.History(c.Request.Context(), id)
	if err != nil {
		logger.Error("history failed", "session_id", id, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorRes{Error: err.Error()})
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	c.JSON(http.StatusOK, HistoryRes{ID: id, Messages: msgs})
}
