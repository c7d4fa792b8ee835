package sieve

import "github.com/rotisserie/eris"

type HookType int

const (
	HookAdd HookType = iota
	HookRemove
	HookSet
	HookGet
)

func (h HookType) String() string {
	switch h {
	case HookAdd:
		return "onAdd"
	case HookRemove:
		return "onRemove"
	case HookSet:
		return "onSet"
	case HookGet:
		return "onGet"
	}
	return "unknown"
}

// Hook selects what an observer listens to: query transitions for OnAdd and
// OnRemove, a single component's data flow for OnSet and OnGet.
type Hook struct {
	Type  HookType
	Terms []any
}

func OnAdd(terms ...any) Hook    { return Hook{Type: HookAdd, Terms: terms} }
func OnRemove(terms ...any) Hook { return Hook{Type: HookRemove, Terms: terms} }

// OnSet and OnGet accept exactly one component; Observe rejects any other
// arity with InvalidHookArityError.
func OnSet(terms ...any) Hook { return Hook{Type: HookSet, Terms: terms} }
func OnGet(terms ...any) Hook { return Hook{Type: HookGet, Terms: terms} }

// Observe subscribes fn to hook and returns the function that unsubscribes
// it. OnAdd and OnRemove register the underlying query if needed.
func (w *World) Observe(hook Hook, fn Observer) (func(), error) {
	switch hook.Type {
	case HookAdd, HookRemove:
		q, err := w.RegisterQuery(hook.Terms...)
		if err != nil {
			return nil, eris.Wrapf(err, "observe %s", hook.Type)
		}
		if hook.Type == HookAdd {
			return q.addObservable.subscribe(fn), nil
		}
		return q.removeObservable.subscribe(fn), nil
	case HookSet, HookGet:
		if len(hook.Terms) != 1 {
			return nil, InvalidHookArityError{Hook: hook.Type, Terms: len(hook.Terms)}
		}
		data, err := w.RegisterComponent(hook.Terms[0])
		if err != nil {
			return nil, eris.Wrapf(err, "observe %s", hook.Type)
		}
		if hook.Type == HookSet {
			return data.setObservable.subscribe(fn), nil
		}
		return data.getObservable.subscribe(fn), nil
	}
	return nil, eris.Errorf("observe: unknown hook type %d", int(hook.Type))
}
