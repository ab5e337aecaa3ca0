package tool

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run(), "git %v", args)
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")

	require.NoError(t, exec.Command("sh", "-c", "echo hi > "+filepath.Join(dir, "f.txt")).Run())
	run("add", "f.txt")
	run("commit", "-m", "initial")
	return dir
}

func TestGitTools(t *testing.T) {
	dir := initGitRepo(t)
	cfg := GitConfig{WorkingDirectory: dir}
	ctx := context.Background()

	t.Run("git_status reports clean tree", func(t *testing.T) {
		res, err := NewGitStatus(cfg).Execute(ctx, nil)
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, "", res.Data)
	})

	t.Run("git_log shows the initial commit", func(t *testing.T) {
		res, err := NewGitLog(cfg).Execute(ctx, map[string]any{"max_count": 5})
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Contains(t, res.Data, "initial")
	})

	t.Run("git_diff is empty on a clean tree", func(t *testing.T) {
		res, err := NewGitDiff(cfg).Execute(ctx, map[string]any{})
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, "", res.Data)
	})
}
