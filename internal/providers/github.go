package providers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChuLiYu/fisher/pkg/types"
)

// githubConfig is the JSON payload of a "## Fisher-GitHub: {...}" line.
type githubConfig struct {
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// GithubProvider validates GitHub-style webhook deliveries: an
// X-Hub-Signature HMAC-SHA1 of the raw body against a shared secret.
type GithubProvider struct {
	secret string
	events map[string]bool
}

func newGithubProvider(raw json.RawMessage) (types.Provider, error) {
	var cfg githubConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("providers: GitHub config: %w", err)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("providers: GitHub config missing \"secret\"")
	}
	p := &GithubProvider{secret: cfg.Secret}
	if len(cfg.Events) > 0 {
		p.events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			p.events[e] = true
		}
	}
	return p, nil
}

func (p *GithubProvider) Kind() string { return "GitHub" }

func (p *GithubProvider) Validate(req *types.Request) types.RequestOutcome {
	if req.Kind != types.RequestWeb {
		return types.Invalid
	}

	sig := headerValue(req.Headers, "X-Hub-Signature")
	if !verifySHA1(p.secret, sig, req.Body) {
		return types.Invalid
	}

	event := headerValue(req.Headers, "X-GitHub-Event")
	if event == "ping" {
		return types.Ping
	}
	if p.events != nil && !p.events[event] {
		return types.Invalid
	}
	return types.Valid
}

func (p *GithubProvider) Env(req *types.Request) []string {
	return []string{
		"GITHUB_EVENT=" + headerValue(req.Headers, "X-GitHub-Event"),
		"GITHUB_DELIVERY=" + headerValue(req.Headers, "X-GitHub-Delivery"),
	}
}

func (p *GithubProvider) PrepareDirectory() bool { return false }

func (p *GithubProvider) TriggerStatusHooks(req *types.Request) bool { return true }

func headerValue(headers map[string][]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func verifySHA1(secret, signature string, body []byte) bool {
	const prefix = "sha1="
	if !strings.HasPrefix(signature, prefix) {
		return false
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := prefix + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
