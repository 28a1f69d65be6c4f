package gitutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644))
	run("add", "a.txt")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestRepo_CurrentBranchAndHead(t *testing.T) {
	dir := initRepo(t)
	r := New(dir)
	ctx := context.Background()

	branch, err := r.CurrentBranch(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, branch)

	head, err := r.RevParseHEAD(ctx)
	require.NoError(t, err)
	require.Len(t, head, 40)
}

func TestRepo_DiffStatAndChangedFiles(t *testing.T) {
	dir := initRepo(t)
	r := New(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\n"), 0o644))

	files, err := r.ChangedFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, files)

	added, removed, err := r.DiffStat(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, added)
	require.Equal(t, 0, removed)
}

func TestRepo_AddAndCommit(t *testing.T) {
	dir := initRepo(t)
	r := New(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("new\n"), 0o644))
	require.NoError(t, r.Add(ctx, []string{"b.txt"}))

	hash, err := r.Commit(ctx, "[task-1] add b.txt")
	require.NoError(t, err)
	require.Len(t, hash, 40)

	files, err := r.ChangedFiles(ctx)
	require.NoError(t, err)
	require.Empty(t, files)
}
