package syncplan

import (
	"log/slog"
	"path"
	"slices"
)

// Planner computes the ordered actions that converge a client with the server.
// A Planner holds no state between calls and may be shared between goroutines
// as long as its collaborators may.
type Planner struct {
	metadata      MetadataProvider
	links         LinkGenerator
	errors        ErrorFactory
	detectRenames bool
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithMetadata sets the provider used to describe server files.
func WithMetadata(m MetadataProvider) PlannerOption {
	return func(p *Planner) {
		p.metadata = m
	}
}

// WithLinks sets the generator of direct, preview and thumbnail links.
func WithLinks(l LinkGenerator) PlannerOption {
	return func(p *Planner) {
		p.links = l
	}
}

// WithErrors replaces DefaultErrors.
func WithErrors(f ErrorFactory) PlannerOption {
	return func(p *Planner) {
		p.errors = f
	}
}

// WithRenameDetection toggles planning of delete+create pairs with equal
// checksums as renames. Enabled by default.
func WithRenameDetection(enabled bool) PlannerOption {
	return func(p *Planner) {
		p.detectRenames = enabled
	}
}

func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{
		errors:        DefaultErrors,
		detectRenames: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan is the outcome of one planning pass.
type Plan struct {
	batch *Batch
	order []ActionID
}

func newPlan(batch *Batch) *Plan {
	order := make([]ActionID, batch.Len())
	for i := range order {
		order[i] = ActionID(i)
	}
	slices.SortStableFunc(order, func(a, b ActionID) int {
		return CompareActions(batch.actions[a], batch.actions[b])
	})
	return &Plan{batch: batch, order: order}
}

// Actions returns all actions in application order.
func (p *Plan) Actions() []*Action {
	out := make([]*Action, len(p.order))
	for i, id := range p.order {
		out[i] = p.batch.actions[id]
	}
	return out
}

// IDs returns the action ids in application order.
func (p *Plan) IDs() []ActionID {
	return slices.Clone(p.order)
}

// Action returns the action with the given id.
func (p *Plan) Action(id ActionID) (*Action, error) {
	return p.batch.Get(id)
}

// ClientActions returns the actions the client executes, in order.
func (p *Plan) ClientActions() []*Action {
	return p.bySide(SideClient)
}

// ServerActions returns the actions the server executes, in order.
func (p *Plan) ServerActions() []*Action {
	return p.bySide(SideServer)
}

func (p *Plan) bySide(side Side) []*Action {
	var out []*Action
	for _, id := range p.order {
		if a := p.batch.actions[id]; a.Side == side {
			out = append(out, a)
		}
	}
	return out
}

// Dependency returns the action id that id depends on.
func (p *Plan) Dependency(id ActionID) (ActionID, bool) {
	return p.batch.Dependency(id)
}

// SetResult records the outcome of an applied action.
func (p *Plan) SetResult(id ActionID, version Version, meta *FileMetadata) error {
	return p.batch.SetResult(id, version, meta)
}

// Resolve refreshes deferred parameters from recorded results.
func (p *Plan) Resolve() {
	p.batch.Resolve()
}

// Stopped reports whether the plan asks the client to abort the sync cycle.
func (p *Plan) Stopped() bool {
	for _, a := range p.batch.actions {
		if a.Kind == ActionError && a.Stop() {
			return true
		}
	}
	return false
}

// Len returns the number of actions.
func (p *Plan) Len() int {
	return len(p.order)
}

// FatalPlan returns a plan consisting of a single stop error.
func FatalPlan(err error) *Plan {
	return fatalPlan(DefaultErrors, err)
}

func fatalPlan(errs ErrorFactory, err error) *Plan {
	de := errs.Wrap(err)
	slog.Error("sync plan aborted", "code", de.Code, "error", err)
	batch := NewBatch(nil)
	batch.Add(NewError(nil, nil, "", de, false, true))
	return newPlan(batch)
}

// PlanFiles plans the files of the folder at folderPath. Server actions are
// meant to be executed before the client actions are returned.
func (p *Planner) PlanFiles(folderPath string, comparisons []*ThreeWayComparison) *Plan {
	folder := normalizeFolder(folderPath)
	batch := NewBatch(p.links)

	valid := p.admit(batch, folder, FamilyFile, comparisons)
	if p.detectRenames {
		var err error
		valid, err = p.planRenames(batch, folder, valid)
		if err != nil {
			return fatalPlan(p.errors, err)
		}
	}
	for _, c := range valid {
		if err := p.planFile(batch, folder, c); err != nil {
			return fatalPlan(p.errors, err)
		}
	}

	plan := newPlan(batch)
	slog.Debug("planned files", "path", folder, "comparisons", len(comparisons), "actions", plan.Len())
	return plan
}

// PlanDirectories plans a set of directory comparisons.
func (p *Planner) PlanDirectories(comparisons []*ThreeWayComparison) *Plan {
	batch := NewBatch(nil)
	for _, c := range p.admit(batch, "", FamilyDirectory, comparisons) {
		p.planDirectory(batch, c)
	}

	plan := newPlan(batch)
	slog.Debug("planned directories", "comparisons", len(comparisons), "actions", plan.Len())
	return plan
}

// admit turns malformed comparisons into error actions and returns the rest.
func (p *Planner) admit(batch *Batch, folder string, family Family, comparisons []*ThreeWayComparison) []*ThreeWayComparison {
	valid := make([]*ThreeWayComparison, 0, len(comparisons))
	for _, c := range comparisons {
		err := c.Validate()
		if err == nil && c.Family() != family {
			err = ErrInvalidComparison
		}
		if err != nil {
			slog.Warn("invalid comparison", "path", folder, "comparison", c, "error", err)
			var client, server Version
			if c != nil {
				client, server = c.ClientVersion, c.ServerVersion
			}
			a := NewError(client, server, folder, p.errors.InvalidComparison(err), false, false)
			a.Comparison = c
			batch.Add(a)
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

func normalizeFolder(p string) string {
	return path.Clean("/" + p)
}
