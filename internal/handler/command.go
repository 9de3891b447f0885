package handler

import (
	"net/http"
	"strings"

	"github.com/CageChen/filedesk/internal/command"
	"github.com/CageChen/filedesk/internal/fs"
	"github.com/gin-gonic/gin"
)

// CommandRequest is the body of POST /command.
type CommandRequest struct {
	Prompt string `json:"prompt"`
}

// CommandHandler turns natural-language prompts into file operations.
type CommandHandler struct {
	backend    fs.Backend
	resolver   *command.Resolver
	dispatcher *command.Dispatcher
}

// NewCommandHandler creates a command handler.
func NewCommandHandler(backend fs.Backend, resolver *command.Resolver, dispatcher *command.Dispatcher) *CommandHandler {
	return &CommandHandler{
		backend:    backend,
		resolver:   resolver,
		dispatcher: dispatcher,
	}
}

// Execute resolves the prompt against the current file names and applies
// the resulting command.
func (h *CommandHandler) Execute(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		badRequest(c, msgPromptRequired)
		return
	}

	ctx := c.Request.Context()
	entries, err := h.backend.List(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	cmd, err := h.resolver.Resolve(ctx, req.Prompt, fs.Names(entries))
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.dispatcher.Dispatch(ctx, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
