// Package command turns client requests into ordered, atomic scene
// mutations.
//
// Every mutation kind is a type in this package implementing Command; the set
// is closed (see Kinds). A Dispatcher executes commands one at a time with the
// scene locked, so each command is atomic, and tells the renderer whether the
// result needs a frame.
package command

import (
	"fmt"

	"github.com/1broseidon/ivicomp/internal/scene"
)

// ExecutionType tells the dispatcher whether the caller waits for the result.
type ExecutionType int

const (
	// Synchronous commands run before the caller's response is sent.
	Synchronous ExecutionType = iota
	// Asynchronous commands are queued and run before the next frame.
	Asynchronous
)

func (t ExecutionType) String() string {
	if t == Asynchronous {
		return "async"
	}
	return "sync"
}

// ExecutionResult is the outcome of one command. The Redraw variants make
// the next frame recomposite every screen regardless of per-object dirty
// flags.
type ExecutionResult int

const (
	ExecutionFailed ExecutionResult = iota
	ExecutionFailedRedraw
	ExecutionSuccess
	ExecutionSuccessRedraw
)

// Succeeded reports whether the command applied.
func (r ExecutionResult) Succeeded() bool {
	return r == ExecutionSuccess || r == ExecutionSuccessRedraw
}

// NeedsRedraw reports whether the result forces a full composition.
func (r ExecutionResult) NeedsRedraw() bool {
	return r == ExecutionFailedRedraw || r == ExecutionSuccessRedraw
}

func (r ExecutionResult) String() string {
	switch r {
	case ExecutionFailed:
		return "failed"
	case ExecutionFailedRedraw:
		return "failed-redraw"
	case ExecutionSuccess:
		return "success"
	case ExecutionSuccessRedraw:
		return "success-redraw"
	default:
		return fmt.Sprintf("ExecutionResult(%d)", int(r))
	}
}

// Executor is what a command may touch while it runs. The scene is already
// locked when Execute is called.
type Executor interface {
	Scene() *scene.Tx
	// AddClientNotification queues a property change for the clients
	// registered on obj.
	AddClientNotification(obj *scene.Object, mask scene.NotificationMask)
}

// Command is one scene mutation. Implementations are the types of this
// package; the interface is sealed.
type Command interface {
	Kind() Kind
	ExecutionType() ExecutionType
	// SenderPID is the process that requested the command.
	SenderPID() int
	Execute(ex Executor) ExecutionResult
	String() string

	sealed()
}

// Base carries the fields every command has.
type Base struct {
	Type ExecutionType
	PID  int
}

func (b Base) ExecutionType() ExecutionType { return b.Type }
func (b Base) SenderPID() int               { return b.PID }
func (Base) sealed()                        {}

// Sync returns a Base for a synchronous command from pid.
func Sync(pid int) Base { return Base{Type: Synchronous, PID: pid} }

// Async returns a Base for an asynchronous command from pid.
func Async(pid int) Base { return Base{Type: Asynchronous, PID: pid} }

// Notification is a property change to deliver to clients.
type Notification struct {
	ObjectType scene.ObjectType
	ObjectID   scene.ID
	Mask       scene.NotificationMask
	Clients    []scene.ClientHandle
}

func (n Notification) String() string {
	return fmt.Sprintf("%s %d: %s", n.ObjectType, n.ObjectID, n.Mask)
}

// hasDuplicates reports whether ids repeats any entry.
func hasDuplicates(ids []scene.ID) bool {
	seen := make(map[scene.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// changed converts a setter's result into a command result, queueing a
// notification when something changed.
func changed(ex Executor, obj *scene.Object, mask scene.NotificationMask, didChange bool) ExecutionResult {
	if !didChange {
		return ExecutionSuccess
	}
	if mask != 0 {
		ex.AddClientNotification(obj, mask)
	}
	return ExecutionSuccessRedraw
}
