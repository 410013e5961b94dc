// Package dialog is the task creation form: it is opened with the date
// range of a finished selection and turns a name plus category into a new
// task in the store.
package dialog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	appLog "monthplan/internal/log"
	"monthplan/internal/model"
)

var (
	// ErrNameRequired is the validation failure for an empty or
	// whitespace-only name. The dialog stays open.
	ErrNameRequired = errors.New("task name required")
	ErrNotOpen      = errors.New("creation dialog is not open")
)

// TaskAdder is the store operation the dialog needs.
type TaskAdder interface {
	Add(ctx context.Context, t model.Task) error
}

type Dialog struct {
	tasks TaskAdder
	newID func() string

	open       bool
	start, end model.Date
}

func New(tasks TaskAdder) *Dialog {
	return &Dialog{tasks: tasks, newID: uuid.NewString}
}

// Open shows the dialog for [start, end], swapping the bounds if needed.
func (d *Dialog) Open(start, end model.Date) {
	if start.After(end) {
		start, end = end, start
	}
	d.open = true
	d.start = start
	d.end = end
}

func (d *Dialog) IsOpen() bool { return d.open }

// Range returns the dates the dialog was opened with.
func (d *Dialog) Range() (model.Date, model.Date) { return d.start, d.end }

// Close dismisses the dialog without creating anything.
func (d *Dialog) Close() { d.open = false }

// Save validates the form and appends the new task. An empty category
// means To Do. The dialog closes only on success.
func (d *Dialog) Save(ctx context.Context, name string, category model.Category) (model.Task, error) {
	if !d.open {
		return model.Task{}, ErrNotOpen
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Task{}, ErrNameRequired
	}
	if category == "" {
		category = model.CategoryToDo
	}

	t := model.Task{
		ID:       d.newID(),
		Name:     name,
		Category: category,
		Start:    d.start,
		End:      d.end,
		Color:    category.Color(),
	}
	if err := d.tasks.Add(ctx, t); err != nil {
		return model.Task{}, err
	}

	d.open = false
	appLog.Info("task created", "id", t.ID, "name", t.Name, "category", t.Category, "start", t.Start, "end", t.End)
	return t, nil
}
