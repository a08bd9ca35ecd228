// Package syncer reconciles vault contents with a remote replica.
//
// There is no wire protocol yet; Remote abstracts the transport and the
// in-memory implementation stands in for a real backend. The merge
// logic compares record IDs and update times, so any future remote only
// has to ship records both ways.
package syncer

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/passkeep/passkeep/pkg/vault"
)

// Resolution selects how conflicting edits are reconciled.
type Resolution int

const (
	// KeepNewest takes whichever side was updated last.
	KeepNewest Resolution = iota
	// KeepLocal always takes the local edit.
	KeepLocal
	// KeepRemote always takes the remote edit.
	KeepRemote
	// KeepBoth keeps the local record and copies the remote one in
	// under a marked title.
	KeepBoth
)

// String returns the resolution's flag name.
func (r Resolution) String() string {
	switch r {
	case KeepNewest:
		return "newest"
	case KeepLocal:
		return "local"
	case KeepRemote:
		return "remote"
	case KeepBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseResolution maps a flag value to a Resolution.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "newest", "":
		return KeepNewest, nil
	case "local":
		return KeepLocal, nil
	case "remote":
		return KeepRemote, nil
	case "both":
		return KeepBoth, nil
	default:
		return 0, fmt.Errorf("unknown conflict resolution: %q (use newest, local, remote, or both)", s)
	}
}

// conflictSuffix marks the duplicated copy a KeepBoth merge creates.
const conflictSuffix = " (conflict)"

// Remote is a replica that can ship records both ways.
type Remote interface {
	// Name identifies the remote in logs and CLI output.
	Name() string
	// Fetch returns all records held by the remote.
	Fetch(ctx context.Context) ([]vault.Record, error)
	// Push replaces the named records on the remote.
	Push(ctx context.Context, records []vault.Record) error
}

// Conflict pairs two diverged versions of one record.
type Conflict struct {
	Local  vault.Record
	Remote vault.Record
}

// Plan is the reconciliation work computed from both record sets.
type Plan struct {
	// Pull are remote-only records to create locally.
	Pull []vault.Record
	// Push are local-only records to send to the remote.
	Push []vault.Record
	// Conflicts are records edited on both sides.
	Conflicts []Conflict
	// Unchanged counts records already identical on both sides.
	Unchanged int
}

// BuildPlan diffs the two record sets by ID. Records present on both
// sides conflict when their update times differ; field-level merging is
// out of scope.
func BuildPlan(local, remote []vault.Record) Plan {
	remoteByID := make(map[string]vault.Record, len(remote))
	for _, rec := range remote {
		remoteByID[rec.ID] = rec
	}

	var plan Plan
	for _, loc := range local {
		rem, ok := remoteByID[loc.ID]
		if !ok {
			plan.Push = append(plan.Push, loc)
			continue
		}
		delete(remoteByID, loc.ID)
		if loc.UpdatedAt.Equal(rem.UpdatedAt) {
			plan.Unchanged++
			continue
		}
		plan.Conflicts = append(plan.Conflicts, Conflict{Local: loc, Remote: rem})
	}
	for _, rec := range remote {
		if _, pending := remoteByID[rec.ID]; pending {
			plan.Pull = append(plan.Pull, rec)
		}
	}
	return plan
}

// Actions is the plan translated under a resolution policy.
type Actions struct {
	// CreateLocal are records to insert into the vault.
	CreateLocal []vault.Record
	// UpdateLocal are records to overwrite in the vault.
	UpdateLocal []vault.Record
	// PushRemote is the full record set the remote should hold next.
	PushRemote []vault.Record
}

// Resolve translates the plan into concrete actions.
func (p Plan) Resolve(res Resolution) Actions {
	var actions Actions
	actions.CreateLocal = append(actions.CreateLocal, p.Pull...)

	for _, c := range p.Conflicts {
		switch res {
		case KeepLocal:
			// Nothing to change locally; the push below wins.
		case KeepRemote:
			actions.UpdateLocal = append(actions.UpdateLocal, c.Remote)
		case KeepNewest:
			if c.Remote.UpdatedAt.After(c.Local.UpdatedAt) {
				actions.UpdateLocal = append(actions.UpdateLocal, c.Remote)
			}
		case KeepBoth:
			dup := *c.Remote.Clone()
			dup.ID = ""
			dup.Title = clampConflictTitle(dup.Title)
			actions.CreateLocal = append(actions.CreateLocal, dup)
		}
	}
	return actions
}

// clampConflictTitle appends the conflict marker without breaking the
// title length limit. Truncation lands on a rune boundary so a
// multibyte title never yields invalid UTF-8.
func clampConflictTitle(title string) string {
	if limit := vault.MaxTitleLength - len(conflictSuffix); len(title) > limit {
		for limit > 0 && !utf8.RuneStart(title[limit]) {
			limit--
		}
		title = title[:limit]
	}
	return title + conflictSuffix
}

// Result summarizes one sync run.
type Result struct {
	Pulled    int `json:"pulled"`
	Pushed    int `json:"pushed"`
	Updated   int `json:"updated"`
	Conflicts int `json:"conflicts"`
	Unchanged int `json:"unchanged"`
}

// Syncer drives full reconciliation rounds against one remote.
type Syncer struct {
	remote Remote
}

// New returns a syncer bound to the given remote.
func New(remote Remote) *Syncer {
	return &Syncer{remote: remote}
}

// Sync reconciles the vault with the remote under the given resolution.
// After a successful run the remote holds the merged record set.
func (s *Syncer) Sync(ctx context.Context, v *vault.Vault, res Resolution) (*Result, error) {
	exported, err := v.Export()
	if err != nil {
		return nil, fmt.Errorf("sync: failed to read vault: %w", err)
	}
	local := make([]vault.Record, 0, len(exported))
	for _, rec := range exported {
		local = append(local, *rec)
	}

	remote, err := s.remote.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: failed to fetch from %s: %w", s.remote.Name(), err)
	}

	plan := BuildPlan(local, remote)
	actions := plan.Resolve(res)

	result := &Result{
		Pushed:    len(plan.Push),
		Conflicts: len(plan.Conflicts),
		Unchanged: plan.Unchanged,
	}
	for i := range actions.CreateLocal {
		rec := actions.CreateLocal[i]
		if _, err := v.Create(&rec); err != nil {
			return nil, fmt.Errorf("sync: failed to create %q: %w", rec.Title, err)
		}
		result.Pulled++
	}
	for i := range actions.UpdateLocal {
		rec := actions.UpdateLocal[i]
		if _, err := v.Update(&rec); err != nil {
			return nil, fmt.Errorf("sync: failed to update %q: %w", rec.Title, err)
		}
		result.Updated++
	}

	// The merged local state is the new remote truth.
	merged, err := v.Export()
	if err != nil {
		return nil, fmt.Errorf("sync: failed to re-read vault: %w", err)
	}
	push := make([]vault.Record, 0, len(merged))
	for _, rec := range merged {
		push = append(push, *rec)
	}
	if err := s.remote.Push(ctx, push); err != nil {
		return nil, fmt.Errorf("sync: failed to push to %s: %w", s.remote.Name(), err)
	}
	return result, nil
}
