// Package command turns natural-language prompts into file operations: the
// Resolver asks a language model for a structured Command and the
// Dispatcher applies it to the active storage backend.
package command

import "errors"

// Supported verbs.
const (
	VerbCreate = "create"
	VerbEdit   = "edit"
	VerbDelete = "delete"
)

var (
	// ErrResolutionUnavailable means the language model could not be reached
	// or refused the request.
	ErrResolutionUnavailable = errors.New("command resolution unavailable")
	// ErrMalformedResolution means the model answered with something that is
	// not a well-formed command object.
	ErrMalformedResolution = errors.New("invalid command structure")
	// ErrInvalidCommand means a well-formed command cannot be executed.
	ErrInvalidCommand = errors.New("invalid command")
)

// Command is a resolved instruction. Args holds the target name and, for
// create and edit, the content.
type Command struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Result is the outcome of a dispatched command.
type Result struct {
	Message string `json:"message"`
}
