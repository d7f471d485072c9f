package providers

import (
	"encoding/json"
	"fmt"

	"github.com/ChuLiYu/fisher/pkg/types"
)

const testingSecret = "testing"

// TestingProvider exists so the scheduler and worker can be exercised by
// tests and by "fisher validate" without standing up a real webhook
// provider. Config "FAIL" makes construction fail, mirroring the original's
// test fixture for provider construction errors.
type TestingProvider struct {
	config string
}

func newTestingProvider(raw json.RawMessage) (types.Provider, error) {
	var cfg string
	if len(raw) > 0 {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("providers: Testing config is not valid JSON")
		}
		// A JSON string config is used decoded; any other JSON value (such
		// as the "{}" of a declaration line) is kept as written.
		if err := json.Unmarshal(raw, &cfg); err != nil {
			cfg = string(raw)
		}
	}
	if cfg == "FAIL" {
		return nil, fmt.Errorf("providers: Testing provider configured to fail construction")
	}
	return &TestingProvider{config: cfg}, nil
}

func (p *TestingProvider) Kind() string { return "Testing" }

func (p *TestingProvider) Validate(req *types.Request) types.RequestOutcome {
	if secret, ok := req.Params["secret"]; ok && secret != testingSecret {
		return types.Invalid
	}
	if ip, ok := req.Params["ip"]; ok && ip != req.Source {
		return types.Invalid
	}
	if req.Params["request_type"] == "ping" {
		return types.Ping
	}
	return types.Valid
}

func (p *TestingProvider) Env(req *types.Request) []string {
	if env, ok := req.Params["env"]; ok {
		return []string{"ENV=" + env}
	}
	return nil
}

func (p *TestingProvider) PrepareDirectory() bool { return true }

func (p *TestingProvider) TriggerStatusHooks(req *types.Request) bool {
	_, ignore := req.Params["ignore_status_hooks"]
	return !ignore
}
