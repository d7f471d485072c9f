package providers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/fisher/pkg/types"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestGithubProvider_Validate(t *testing.T) {
	p, err := newGithubProvider([]byte(`{"secret":"s3cr3t"}`))
	require.NoError(t, err)

	body := []byte(`{"zen":"hello"}`)

	req := &types.Request{
		Kind: types.RequestWeb,
		Body: body,
		Headers: map[string][]string{
			"X-Hub-Signature": {sign("s3cr3t", body)},
			"X-GitHub-Event":  {"push"},
		},
	}
	assert.Equal(t, types.Valid, p.Validate(req))

	req.Headers["X-GitHub-Event"] = []string{"ping"}
	assert.Equal(t, types.Ping, p.Validate(req))

	badReq := &types.Request{
		Kind: types.RequestWeb,
		Body: body,
		Headers: map[string][]string{
			"X-Hub-Signature": {"sha1=deadbeef"},
			"X-GitHub-Event":  {"push"},
		},
	}
	assert.Equal(t, types.Invalid, p.Validate(badReq))
}

func TestGithubProvider_EventFilter(t *testing.T) {
	p, err := newGithubProvider([]byte(`{"secret":"s3cr3t","events":["push"]}`))
	require.NoError(t, err)

	body := []byte(`{}`)
	req := &types.Request{
		Kind: types.RequestWeb,
		Body: body,
		Headers: map[string][]string{
			"X-Hub-Signature": {sign("s3cr3t", body)},
			"X-GitHub-Event":  {"pull_request"},
		},
	}
	assert.Equal(t, types.Invalid, p.Validate(req))
}

func TestGithubProvider_MissingSecret(t *testing.T) {
	_, err := newGithubProvider([]byte(`{}`))
	assert.Error(t, err)
}
