package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/angelmondragon/possync/internal/localstore"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/angelmondragon/possync/pkg/enums"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Store is the slice of the local store the queue persists through.
type Store interface {
	AppendAction(ctx context.Context, a *localstore.QueuedAction) error
	ListActions(ctx context.Context) ([]localstore.QueuedAction, error)
	DeleteAction(ctx context.Context, id string) error
	IncrementActionRetry(ctx context.Context, id string) (int, error)
	CountActions(ctx context.Context) (int, error)
}

// Entry is a pending action as read back from the store. Err is set, and
// Action is nil, when the stored payload could not be decoded.
type Entry struct {
	ID         string
	Kind       enums.ActionKind
	Action     Action
	RetryCount int
	EnqueuedAt time.Time
	Err        error
}

// Queue is the durable FIFO of mutations awaiting replay.
type Queue struct {
	store    Store
	registry *DecoderRegistry
	validate *validator.Validate
	now      func() time.Time
}

// New builds a queue over store. A nil store gives a detached queue: it
// validates, lists nothing and refuses to enqueue.
func New(store Store) *Queue {
	return &Queue{
		store:    store,
		registry: DefaultRegistry(),
		validate: newValidator(),
		now:      time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewActionID returns "<kind>-<unix millis>-<random>".
func NewActionID(kind enums.ActionKind, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%d-%s", kind, at.UnixMilli(), suffix)
}

// Validate checks a's payload without enqueueing it.
func (q *Queue) Validate(a Action) error {
	if a == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "action is required")
	}
	if !a.Kind().IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown action kind %q", a.Kind()))
	}
	if err := q.validate.Struct(a); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s payload", a.Kind()))
	}
	if sv, ok := a.(selfValidating); ok {
		if err := sv.Validate(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s payload", a.Kind()))
		}
	}
	return nil
}

// Enqueue validates a and appends it durably. It never touches the network.
func (q *Queue) Enqueue(ctx context.Context, a Action) (string, error) {
	if a == nil {
		return "", q.Validate(a)
	}
	id := NewActionID(a.Kind(), q.now().UTC())
	if err := q.EnqueueWithID(ctx, id, a); err != nil {
		return "", err
	}
	return id, nil
}

// EnqueueWithID is Enqueue with a caller-chosen id, used when a direct remote
// call already went out under that id.
func (q *Queue) EnqueueWithID(ctx context.Context, id string, a Action) error {
	if err := q.Validate(a); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "action id is required")
	}
	payload, err := encode(a)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding action")
	}

	if q.store == nil {
		return pkgerrors.New(pkgerrors.CodeOfflineUnavailable, "offline storage is disabled")
	}

	row := &localstore.QueuedAction{
		ID:         id,
		Kind:       string(a.Kind()),
		Payload:    payload,
		EnqueuedAt: q.now().UTC(),
	}
	if err := q.store.AppendAction(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending action")
	}
	return nil
}

// ListPending returns every pending action in enqueue order.
func (q *Queue) ListPending(ctx context.Context) ([]Entry, error) {
	if q.store == nil {
		return nil, nil
	}
	rows, err := q.store.ListActions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry := Entry{
			ID:         row.ID,
			Kind:       enums.ActionKind(row.Kind),
			RetryCount: row.RetryCount,
			EnqueuedAt: row.EnqueuedAt,
		}
		entry.Action, entry.Err = q.decode(row)
		out = append(out, entry)
	}
	return out, nil
}

func (q *Queue) decode(row localstore.QueuedAction) (Action, error) {
	var env envelope
	if err := json.Unmarshal([]byte(row.Payload), &env); err != nil {
		return nil, fmt.Errorf("decoding envelope of %s: %w", row.ID, err)
	}
	action, err := q.registry.Decode(enums.ActionKind(row.Kind), env.Version, env.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", row.ID, err)
	}
	return action, nil
}

// RemoveByID drops id from the queue. Removing an unknown id is not an error.
func (q *Queue) RemoveByID(ctx context.Context, id string) error {
	if q.store == nil {
		return nil
	}
	return q.store.DeleteAction(ctx, id)
}

// IncrementRetry bumps the retry counter of id and returns the new count.
// ErrGone is returned when the action was already removed.
func (q *Queue) IncrementRetry(ctx context.Context, id string) (int, error) {
	if q.store == nil {
		return 0, ErrGone
	}
	n, err := q.store.IncrementActionRetry(ctx, id)
	if errors.Is(err, localstore.ErrNotFound) {
		return 0, ErrGone
	}
	return n, err
}

// Len returns the number of pending actions.
func (q *Queue) Len(ctx context.Context) (int, error) {
	if q.store == nil {
		return 0, nil
	}
	return q.store.CountActions(ctx)
}

// ErrGone reports an action that disappeared between listing and update.
var ErrGone = errors.New("queued action no longer exists")
