package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildbot/pkg/logx"
)

const policyV1 = `
mirror:
  deny: ["notify:remove"]
  allow: ["notify:add"]
access:
  notify:
    roles: [role-officer]
`

func writePolicy(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func policyFixture(t *testing.T, content string) (*PolicyManager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, content)
	return NewPolicyManager(path, logx.Nop()), path
}

func TestLoadParsesPolicy(t *testing.T) {
	pm, _ := policyFixture(t, policyV1)
	require.NoError(t, pm.Load())

	p := pm.Current()
	assert.Equal(t, []string{"notify:remove"}, p.Mirror.Deny)
	assert.Equal(t, []string{"notify:add"}, p.Mirror.Allow)
	assert.Equal(t, []string{"role-officer"}, p.Access["notify"].Roles)
}

func TestLoadMissingFileRunsUnrestricted(t *testing.T) {
	pm := NewPolicyManager(filepath.Join(t.TempDir(), "absent.yaml"), logx.Nop())
	require.NoError(t, pm.Load())

	p := pm.Current()
	assert.Empty(t, p.Mirror.Deny)
	assert.Empty(t, p.Access)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	pm, _ := policyFixture(t, "mirror: [not: a: mapping")
	require.Error(t, pm.Load())
}

func TestReloadCommitsValidUpdate(t *testing.T) {
	pm, path := policyFixture(t, policyV1)
	require.NoError(t, pm.Load())

	writePolicy(t, path, `
mirror:
  deny: ["notify:remove", "notify:edit"]
`)
	pm.reload()

	assert.Equal(t, []string{"notify:remove", "notify:edit"}, pm.Current().Mirror.Deny)
	assert.Empty(t, pm.Current().Mirror.Allow)
}

func TestReloadInvalidFileKeepsPrevious(t *testing.T) {
	pm, path := policyFixture(t, policyV1)
	require.NoError(t, pm.Load())

	writePolicy(t, path, "mirror:\n  deny: [broken")
	pm.reload()

	p := pm.Current()
	assert.Equal(t, []string{"notify:remove"}, p.Mirror.Deny,
		"a broken edit must not wipe the running policy")
	assert.Equal(t, []string{"role-officer"}, p.Access["notify"].Roles)
}

func TestReloadUnreadableFileKeepsPrevious(t *testing.T) {
	pm, path := policyFixture(t, policyV1)
	require.NoError(t, pm.Load())

	require.NoError(t, os.Remove(path))
	pm.reload()

	assert.Equal(t, []string{"notify:remove"}, pm.Current().Mirror.Deny)
}

func TestReloadAfterRecoveryCommits(t *testing.T) {
	pm, path := policyFixture(t, policyV1)
	require.NoError(t, pm.Load())

	writePolicy(t, path, "mirror:\n  deny: [broken")
	pm.reload()
	writePolicy(t, path, "mirror:\n  deny: [\"ping\"]\n")
	pm.reload()

	assert.Equal(t, []string{"ping"}, pm.Current().Mirror.Deny,
		"a fixed file must take effect on the next change")
}
