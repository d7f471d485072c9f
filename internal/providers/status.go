package providers

import (
	"encoding/json"
	"fmt"

	"github.com/ChuLiYu/fisher/pkg/types"
)

// statusConfig is the JSON payload of a "## Fisher-Status: {...}" line.
type statusConfig struct {
	Events []string `json:"events"`
}

// StatusProvider never authenticates web requests; it only matches the
// synthetic StatusHook requests the resolver builds from a completed job's
// output, filtering on a configured set of event names.
type StatusProvider struct {
	events map[string]bool
}

func newStatusProvider(raw json.RawMessage) (types.Provider, error) {
	var cfg statusConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("providers: Status config: %w", err)
	}
	if len(cfg.Events) == 0 {
		return nil, fmt.Errorf("providers: Status config requires a non-empty \"events\" list")
	}
	events := make(map[string]bool, len(cfg.Events))
	for _, e := range cfg.Events {
		events[e] = true
	}
	return &StatusProvider{events: events}, nil
}

func (p *StatusProvider) Kind() string { return "Status" }

func (p *StatusProvider) Validate(req *types.Request) types.RequestOutcome {
	if req.Kind != types.RequestStatusHook {
		return types.Invalid
	}
	if !p.events[req.Params["event"]] {
		return types.Invalid
	}
	return types.Valid
}

func (p *StatusProvider) Env(req *types.Request) []string {
	return []string{"FISHER_STATUS_EVENT=" + req.Params["event"]}
}

func (p *StatusProvider) PrepareDirectory() bool { return false }

// TriggerStatusHooks is false: status hooks do not themselves chain into
// further status hooks, bounding the depth of a single job's fan-out.
func (p *StatusProvider) TriggerStatusHooks(req *types.Request) bool { return false }

// Matches reports whether this provider's configured event filter accepts
// event, used by the hook repository's status-hook lookup.
func (p *StatusProvider) Matches(event string) bool {
	return p.events[event]
}
