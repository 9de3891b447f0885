package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/CageChen/filedesk/internal/fs"
	"github.com/sirupsen/logrus"
)

// Dispatcher applies resolved commands to a storage backend.
type Dispatcher struct {
	backend fs.Backend
}

// NewDispatcher creates a dispatcher over the given backend.
func NewDispatcher(backend fs.Backend) *Dispatcher {
	return &Dispatcher{backend: backend}
}

// Dispatch executes cmd. Argument problems and unknown verbs yield
// ErrInvalidCommand; backend errors are returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	verb := strings.ToLower(strings.TrimSpace(cmd.Command))

	if len(cmd.Args) == 0 {
		return Result{}, fmt.Errorf("%w: a filename is required", ErrInvalidCommand)
	}
	name := cmd.Args[0]
	if err := fs.ValidateName(name); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	var err error
	var message string
	switch verb {
	case VerbCreate:
		content := ""
		if len(cmd.Args) > 1 {
			content = cmd.Args[1]
		}
		err = d.backend.Create(ctx, name, []byte(content))
		message = fmt.Sprintf("File %s created.", name)
	case VerbEdit:
		if len(cmd.Args) < 2 {
			return Result{}, fmt.Errorf("%w: content is required for edit command", ErrInvalidCommand)
		}
		err = d.backend.Update(ctx, name, []byte(cmd.Args[1]))
		message = fmt.Sprintf("File %s edited.", name)
	case VerbDelete:
		err = d.backend.Delete(ctx, name)
		message = fmt.Sprintf("File %s deleted.", name)
	default:
		return Result{}, fmt.Errorf("%w: unsupported command %q", ErrInvalidCommand, cmd.Command)
	}
	if err != nil {
		return Result{}, err
	}

	logrus.WithFields(logrus.Fields{
		"command": verb,
		"name":    name,
		"backend": d.backend.Name(),
	}).Info("command executed")
	return Result{Message: message}, nil
}
