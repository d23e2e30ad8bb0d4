package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"sentinel/config"
	"sentinel/internals/modules/tenant"
	"sentinel/internals/security"
	"sentinel/pkg/apperror"
	"sentinel/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryService(t *testing.T) *tenant.Service {
	t.Helper()
	cipher, err := security.NewCipher("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	tokens := security.NewTokenService(&config.AuthConfig{Secret: "a-very-long-test-secret", ExpiryMin: 5})
	return tenant.NewService(tenant.NewMemoryStore(), cipher, tokens, logger.Nop())
}

// run executes one tenantctl invocation against svc and returns stdout.
func run(t *testing.T, svc *tenant.Service, args ...string) (string, error) {
	t.Helper()
	var gotPath string
	released := false
	open := func(_ context.Context, cfgPath string) (*tenant.Service, func(), error) {
		gotPath = cfgPath
		return svc, func() { released = true }, nil
	}

	cmd := newRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		assert.True(t, released)
		assert.NotEmpty(t, gotPath)
	}
	return out.String(), err
}

func field(t *testing.T, out, name string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, name+":"); ok {
			return strings.TrimSpace(v)
		}
	}
	t.Fatalf("%s missing from output %q", name, out)
	return ""
}

func TestCreatePrintsWorkingKey(t *testing.T) {
	svc := newMemoryService(t)

	out, err := run(t, svc, "--config", "test.yaml", "create", "--name", "acme", "--config-json", `{"plan":"pro"}`)
	require.NoError(t, err)

	id := uuid.MustParse(field(t, out, "tenant_id"))
	gotID, _, err := svc.VerifyAPIKey(context.Background(), field(t, out, "api_key"))
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	cfg, err := svc.GetConfig(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "pro", cfg["plan"])
}

func TestRotateRevokesOldKey(t *testing.T) {
	svc := newMemoryService(t)

	out, err := run(t, svc, "create", "--name", "acme")
	require.NoError(t, err)
	id := field(t, out, "tenant_id")
	oldKey := field(t, out, "api_key")

	out, err = run(t, svc, "rotate", "--id", id)
	require.NoError(t, err)
	newKey := field(t, out, "api_key")
	assert.NotEqual(t, oldKey, newKey)

	_, _, err = svc.VerifyAPIKey(context.Background(), oldKey)
	assert.True(t, apperror.IsKind(err, apperror.Unauthorised))

	_, _, err = svc.VerifyAPIKey(context.Background(), newKey)
	assert.NoError(t, err)
}

func TestCommandInputErrors(t *testing.T) {
	svc := newMemoryService(t)

	tests := []struct {
		name string
		args []string
	}{
		{"create without name", []string{"create"}},
		{"create with bad json", []string{"create", "--name", "acme", "--config-json", "{"}},
		{"rotate without id", []string{"rotate"}},
		{"rotate with bad id", []string{"rotate", "--id", "nope"}},
		{"rotate unknown tenant", []string{"rotate", "--id", uuid.NewString()}},
		{"unknown command", []string{"delete"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, svc, tt.args...)
			assert.Error(t, err)
		})
	}
}
