package syncplan

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrUnknownAction     = errors.New("unknown action")
	ErrResultAlreadySet  = errors.New("resulting version already set")
	ErrCyclicDependency  = errors.New("cyclic action dependency")
	ErrSelfDependency    = errors.New("action cannot depend on itself")
	ErrDependencyChanged = errors.New("dependency already recorded")
)

// ActionID addresses an action within its Batch.
type ActionID int

// Batch collects the actions of one planning pass and resolves deferred
// metadata between them in two phases: actions are added and linked first,
// then Resolve copies the metadata produced by applied dependencies into
// their dependents. Links are indexes, never pointers between actions.
type Batch struct {
	actions   []*Action
	dependsOn map[ActionID]ActionID
	links     LinkGenerator
}

// NewBatch returns an empty batch. links may be nil.
func NewBatch(links LinkGenerator) *Batch {
	return &Batch{
		dependsOn: make(map[ActionID]ActionID),
		links:     links,
	}
}

// Add appends an action and returns its id.
func (b *Batch) Add(a *Action) ActionID {
	b.actions = append(b.actions, a)
	return ActionID(len(b.actions) - 1)
}

// Len returns the number of actions in the batch.
func (b *Batch) Len() int {
	return len(b.actions)
}

// Get returns the action with the given id.
func (b *Batch) Get(id ActionID) (*Action, error) {
	if id < 0 || int(id) >= len(b.actions) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, id)
	}
	return b.actions[id], nil
}

// DependOn makes the parameters of dependent follow the outcome of dependency.
func (b *Batch) DependOn(dependent, dependency ActionID) error {
	if _, err := b.Get(dependent); err != nil {
		return err
	}
	if _, err := b.Get(dependency); err != nil {
		return err
	}
	if dependent == dependency {
		return ErrSelfDependency
	}
	if current, ok := b.dependsOn[dependent]; ok && current != dependency {
		return fmt.Errorf("%w: %d depends on %d", ErrDependencyChanged, dependent, current)
	}
	for next, ok := dependency, true; ok; next, ok = b.dependsOn[next] {
		if next == dependent {
			return ErrCyclicDependency
		}
	}
	b.dependsOn[dependent] = dependency
	return nil
}

// Dependency returns the action id the given action depends on.
func (b *Batch) Dependency(id ActionID) (ActionID, bool) {
	dep, ok := b.dependsOn[id]
	return dep, ok
}

// SetResult records the version produced by applying an action, together with
// the server metadata describing it. It may be called once per action.
func (b *Batch) SetResult(id ActionID, version Version, meta *FileMetadata) error {
	a, err := b.Get(id)
	if err != nil {
		return err
	}
	if a.resulting != nil {
		return fmt.Errorf("%w: %s", ErrResultAlreadySet, a.Kind)
	}
	a.resulting = &result{version: version, metadata: meta}
	return nil
}

// Resolve runs the second phase: every dependent whose dependency has a result
// takes the metadata of that result. Dependents of unapplied actions keep
// the metadata they were constructed with. Resolve may be called repeatedly.
func (b *Batch) Resolve() {
	for dependent, dependency := range b.dependsOn {
		dep := b.actions[dependency]
		if dep.resulting == nil || dep.resulting.metadata == nil {
			continue
		}
		a := b.actions[dependent]
		a.metadata = dep.resulting.metadata
		a.links = nil
		if b.links != nil {
			links, err := b.links.Links(a.metadata)
			if err != nil {
				slog.Warn("deferred links unavailable", "name", a.metadata.Name, "error", err)
			} else {
				a.links = links
			}
		}
	}
}

// Actions returns the actions of the batch in insertion order.
func (b *Batch) Actions() []*Action {
	out := make([]*Action, len(b.actions))
	copy(out, b.actions)
	return out
}

// Sorted returns the actions of the batch in application order.
func (b *Batch) Sorted() []*Action {
	out := b.Actions()
	SortActions(out)
	return out
}
