package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathquest/mathquest/internal/domain"
	"github.com/mathquest/mathquest/internal/infra/sqlite"
)

// newHome points MATHQUEST_HOME at a temp dir seeded with seven correct
// addition attempts for u1 and two badge definitions.
func newHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("MATHQUEST_HOME", home)
	t.Setenv("MATHQUEST_LOG_LEVEL", "error")

	db, err := sqlite.Open(home)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.UpsertExerciseType(ctx, "addition", true))
	start := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		_, err := db.RecordAttempt(ctx, domain.Attempt{
			UserID: "u1", ExerciseType: "addition", Correct: true,
			Duration: 6 * time.Second, CreatedAt: start.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	require.NoError(t, db.UpsertBadge(ctx, domain.Badge{
		ID: "first-five", Name: "First Five", Requirements: domain.RequirementSchema{"attempts_count": 5},
	}))
	require.NoError(t, db.UpsertBadge(ctx, domain.Badge{
		ID: "ten", Name: "Ten", Requirements: domain.RequirementSchema{"attempts_count": 10},
	}))
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd("1.2.3")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mathquest 1.2.3\n", out)
}

func TestCheck(t *testing.T) {
	newHome(t)

	out, err := run(t, "check", "--user", "u1", "--requirements", `{"attempts_count": 5}`)
	require.NoError(t, err)
	assert.Equal(t, "attempts_count: passed\n", out)

	out, err = run(t, "check", "--user", "u1", "--requirements", `{"attempts_count": 10}`, "--cache")
	require.NoError(t, err)
	assert.Equal(t, "attempts_count: failed\n", out)

	out, err = run(t, "check", "--user", "u1", "--requirements", `{"level": 2}`)
	require.NoError(t, err)
	assert.Equal(t, "unrecognized: not_handled\n", out)
}

func TestCheck_WithEvent(t *testing.T) {
	newHome(t)

	out, err := run(t, "check", "--user", "nobody", "--requirements", `{"max_time": 5}`,
		"--correct", "--duration", "3.2s")
	require.NoError(t, err)
	assert.Equal(t, "max_time: passed\n", out)
}

func TestCheck_Errors(t *testing.T) {
	newHome(t)

	_, err := run(t, "check", "--user", "u1", "--requirements", `[1]`)
	assert.ErrorIs(t, err, domain.ErrInvalidSchema)

	_, err = run(t, "check", "--requirements", `{"attempts_count": 1}`)
	assert.Error(t, err, "--user is required")

	_, err = run(t, "check", "--user", "u1", "--requirements", `{"comeback_days": 3}`, "--at", "yesterday")
	assert.Error(t, err)
}

func TestProgress(t *testing.T) {
	newHome(t)

	out, err := run(t, "progress", "--user", "u1", "--requirements", `{"attempts_count": 10}`)
	require.NoError(t, err)
	assert.Contains(t, out, "attempts_count: [")
	assert.Contains(t, out, "70% │ 7 / 10")

	out, err = run(t, "progress", "--user", "u1", "--requirements", `{"comeback_days": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "comeback: no progress available\n", out)
}

func TestEvaluate(t *testing.T) {
	newHome(t)

	out, err := run(t, "evaluate", "--user", "u1")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], "BADGE"))
	assert.Contains(t, out, "first-five")
	assert.Contains(t, out, "1 of 2 badges passed")
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "[██████████░░░░░░░░░░]  50% │ 5 / 10", renderBar(domain.NewProgress(5, 10)))
	assert.Equal(t, "[████████████████████] 100% │ 1 / 1", renderBar(domain.BinaryProgress(true)))
	assert.Equal(t, "[░░░░░░░░░░░░░░░░░░░░]   0% │ 0 / 1", renderBar(domain.BinaryProgress(false)))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MATHQUEST_CLI_TEST_MARKER=loaded\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("MATHQUEST_CLI_TEST_MARKER") })

	require.NoError(t, loadEnv(path))
	assert.Equal(t, "loaded", os.Getenv("MATHQUEST_CLI_TEST_MARKER"))

	assert.NoError(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, loadEnv(""))
}
