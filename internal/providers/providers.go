// Package providers implements the pluggable request validators bound to
// hooks: a GitHub-style HMAC provider, a status provider for status-hook
// chains, and a testing provider used by local exercising and tests.
package providers

import (
	"encoding/json"
	"fmt"

	"github.com/ChuLiYu/fisher/pkg/types"
)

// Constructor builds a Provider from its raw JSON config, as parsed from a
// "## Fisher-<Provider>: {json}" declaration line.
type Constructor func(config json.RawMessage) (types.Provider, error)

var registry = map[string]Constructor{
	"GitHub":  newGithubProvider,
	"Status":  newStatusProvider,
	"Testing": newTestingProvider,
}

// New dispatches to the registered constructor for kind. Unknown kinds are
// a hook-load error, not a runtime error: providers are resolved once, at
// startup, while hooks are parsed.
func New(kind string, config json.RawMessage) (types.Provider, error) {
	ctor, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("providers: unknown provider kind %q", kind)
	}
	return ctor(config)
}
