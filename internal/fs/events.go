package fs

import "context"

// EventOp is the kind of change made to a name in the namespace.
type EventOp int

// Namespace change kinds.
const (
	EventCreate EventOp = iota
	EventUpdate
	EventRemove
	EventRename
)

func (op EventOp) String() string {
	switch op {
	case EventCreate:
		return "create"
	case EventUpdate:
		return "update"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event describes one change to the namespace.
type Event struct {
	Op   EventOp
	Name string
}

// Callback receives namespace change events.
type Callback func(Event)

type eventBackend struct {
	Backend
	notify Callback
}

// WithEvents wraps b so that notify is called after every successful
// mutation. Reads and listings pass through untouched.
func WithEvents(b Backend, notify Callback) Backend {
	return &eventBackend{Backend: b, notify: notify}
}

func (e *eventBackend) Create(ctx context.Context, name string, content []byte) error {
	if err := e.Backend.Create(ctx, name, content); err != nil {
		return err
	}
	e.notify(Event{Op: EventCreate, Name: name})
	return nil
}

func (e *eventBackend) Update(ctx context.Context, name string, content []byte) error {
	if err := e.Backend.Update(ctx, name, content); err != nil {
		return err
	}
	e.notify(Event{Op: EventUpdate, Name: name})
	return nil
}

func (e *eventBackend) Delete(ctx context.Context, name string) error {
	if err := e.Backend.Delete(ctx, name); err != nil {
		return err
	}
	e.notify(Event{Op: EventRemove, Name: name})
	return nil
}

func (e *eventBackend) AddUploaded(ctx context.Context, name string, content []byte, mimeType string) error {
	if err := e.Backend.AddUploaded(ctx, name, content, mimeType); err != nil {
		return err
	}
	e.notify(Event{Op: EventCreate, Name: name})
	return nil
}
