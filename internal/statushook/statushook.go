// Package statushook implements the status-hook resolver: a pure query
// over a completed job's output and the hook repository, producing the
// follow-up jobs a worker should run inline before clearing its busy flag.
package statushook

import (
	"github.com/ChuLiYu/fisher/internal/hooks"
	"github.com/ChuLiYu/fisher/pkg/types"
)

// Resolve returns the sequence of follow-up jobs triggered by a completed
// job's output, in the repository's stable iteration order. It returns an
// empty slice when output didn't ask for status hooks or no bound status
// hook matches its event.
func Resolve(repo *hooks.Repository, source *types.Request, output types.JobOutput, deliveryID string) []*types.Job {
	if !output.TriggerStatusHooks || output.Event == "" {
		return nil
	}

	matches := repo.LookupStatusHooks(output.Event)
	if len(matches) == 0 {
		return nil
	}

	jobs := make([]*types.Job, 0, len(matches))
	for _, hp := range matches {
		req := source.Clone()
		req.Kind = types.RequestStatusHook
		if req.Params == nil {
			req.Params = make(map[string]string, 1)
		}
		req.Params["event"] = output.Event

		jobs = append(jobs, &types.Job{
			Hook:       hp.Hook,
			Provider:   hp.Provider,
			Request:    req,
			ScriptID:   hp.Hook.Name,
			DeliveryID: deliveryID,
		})
	}
	return jobs
}
