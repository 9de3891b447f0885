package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
)

// ErrEmptyPrompt is returned for a prompt that is blank after trimming.
var ErrEmptyPrompt = errors.New("prompt is required and must be a non-empty string")

// ChatModel is the part of an eino chat model the resolver needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Reason classifies why the language model could not be used.
type Reason string

// Upstream failure reasons.
const (
	ReasonQuota      Reason = "quota_exceeded"
	ReasonCredential Reason = "invalid_credential"
	ReasonRateLimit  Reason = "rate_limited"
	ReasonTimeout    Reason = "timeout"
	ReasonUpstream   Reason = "upstream_error"
)

// UnavailableError reports a failed language-model call. It matches
// ErrResolutionUnavailable as well as the underlying error.
type UnavailableError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *UnavailableError) Error() string {
	return e.Message
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrResolutionUnavailable, e.Err}
}

const systemPrompt = `You are a helpful assistant that translates natural language prompts into file operations.
The user works on a flat set of files with no directories.
The current files are:
%s

Translate the user's prompt into exactly one of these commands:
- "create": create a file, args are [filename] or [filename, content]
- "edit": replace the content of an existing file, args are [filename, content]
- "delete": delete a file, args are [filename]

Respond with a single JSON object with the keys "command" and "args", where "args" is an array of strings.
Do not add any other text.
Examples:
- "create a new file called test.txt" => {"command": "create", "args": ["test.txt"]}
- "create notes.md saying hello" => {"command": "create", "args": ["notes.md", "hello"]}
- "add '<h1>Hello World</h1>' to index.html" => {"command": "edit", "args": ["index.html", "<h1>Hello World</h1>"]}
- "delete the file style.css" => {"command": "delete", "args": ["style.css"]}`

// Resolver asks a language model to translate a prompt into a Command.
type Resolver struct {
	model   ChatModel
	timeout time.Duration
}

// NewResolver creates a resolver over the given model. A positive timeout
// bounds every call in addition to the caller's context.
func NewResolver(m ChatModel, timeout time.Duration) *Resolver {
	return &Resolver{model: m, timeout: timeout}
}

// Resolve translates prompt into a Command, giving the model the current
// file names as context. The reply is validated but never executed here.
func (r *Resolver) Resolve(ctx context.Context, prompt string, knownNames []string) (Command, error) {
	if strings.TrimSpace(prompt) == "" {
		return Command{}, ErrEmptyPrompt
	}
	if knownNames == nil {
		knownNames = []string{}
	}

	structure, err := json.MarshalIndent(knownNames, "", "  ")
	if err != nil {
		return Command{}, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(systemPrompt, structure)),
		schema.UserMessage(prompt),
	})
	if err != nil {
		uerr := classify(ctx, err)
		logrus.WithFields(logrus.Fields{
			"reason":  uerr.Reason,
			"elapsed": time.Since(start).String(),
		}).WithError(err).Warn("language model call failed")
		return Command{}, uerr
	}
	if resp == nil {
		return Command{}, fmt.Errorf("%w: empty reply", ErrMalformedResolution)
	}

	cmd, err := parseCommand(resp.Content)
	if err != nil {
		logrus.WithField("reply", truncate(resp.Content, 200)).Warn("unusable language model reply")
		return Command{}, err
	}

	logrus.WithFields(logrus.Fields{
		"command": cmd.Command,
		"args":    len(cmd.Args),
		"elapsed": time.Since(start).String(),
	}).Debug("prompt resolved")
	return cmd, nil
}

// parseCommand extracts the command object from a model reply. Prose or
// code fences around the object are tolerated.
func parseCommand(reply string) (Command, error) {
	content := strings.TrimSpace(reply)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return Command{}, fmt.Errorf("%w: reply is not a JSON object", ErrMalformedResolution)
	}

	var raw struct {
		Command *string  `json:"command"`
		Args    []string `json:"args"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedResolution, err)
	}
	if raw.Command == nil || strings.TrimSpace(*raw.Command) == "" {
		return Command{}, fmt.Errorf("%w: missing command", ErrMalformedResolution)
	}
	if len(raw.Args) == 0 {
		return Command{}, fmt.Errorf("%w: missing args", ErrMalformedResolution)
	}
	return Command{Command: *raw.Command, Args: raw.Args}, nil
}

// classify maps a model client error to a reason. Providers report these
// conditions with different error types, so the message text is inspected.
func classify(ctx context.Context, err error) *UnavailableError {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &UnavailableError{Reason: ReasonTimeout, Message: "Language model request timed out. Please try again later.", Err: err}
	case strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "exceeded your current quota"):
		return &UnavailableError{Reason: ReasonQuota, Message: "Language model API quota exceeded. Please check your billing details.", Err: err}
	case strings.Contains(msg, "invalid_api_key") || strings.Contains(msg, "incorrect api key") ||
		strings.Contains(msg, "status code: 401") || strings.Contains(msg, "authentication_error"):
		return &UnavailableError{Reason: ReasonCredential, Message: "Invalid language model API key. Please check your configuration.", Err: err}
	case strings.Contains(msg, "rate_limit") || strings.Contains(msg, "status code: 429"):
		return &UnavailableError{Reason: ReasonRateLimit, Message: "Rate limit exceeded. Please try again later.", Err: err}
	default:
		return &UnavailableError{Reason: ReasonUpstream, Message: "Language model API error: " + err.Error(), Err: err}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
