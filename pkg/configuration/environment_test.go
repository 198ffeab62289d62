package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "MOBSCHED_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "scheduling")
	requireMkdirAll(t, sub)

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(sub))

	_ = os.Unsetenv("MOBSCHED_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("MOBSCHED_TEST_ENV_LOAD"))
}

func TestSchedulingOptions_Validate(t *testing.T) {
	valid := func() SchedulingOptions {
		return SchedulingOptions{
			ClockInPolicy: " Start_Only ",
			SaveTimeout:   time.Second,
			WorkflowTTL:   time.Minute,
			WorkflowStore: "REDIS",
		}
	}

	t.Run("normalizes case and spaces", func(t *testing.T) {
		opts := valid()
		require.NoError(t, opts.Validate())
		require.Equal(t, ClockInPolicyStartOnly, opts.ClockInPolicy)
		require.Equal(t, WorkflowStoreRedis, opts.WorkflowStore)
	})

	t.Run("rejects unknown clock-in policy", func(t *testing.T) {
		opts := valid()
		opts.ClockInPolicy = "anytime"
		require.ErrorContains(t, opts.Validate(), "SCHEDULING_CLOCK_IN_POLICY")
	})

	t.Run("rejects unknown store", func(t *testing.T) {
		opts := valid()
		opts.WorkflowStore = "etcd"
		require.ErrorContains(t, opts.Validate(), "SCHEDULING_WORKFLOW_STORE")
	})

	t.Run("rejects non-positive timeout", func(t *testing.T) {
		opts := valid()
		opts.SaveTimeout = 0
		require.ErrorContains(t, opts.Validate(), "SCHEDULING_SAVE_TIMEOUT")
	})
}

func TestRateLimitOptions_Validate(t *testing.T) {
	require.NoError(t, (&RateLimitOptions{GlobalRPS: 10, Storage: "memory"}).Validate())
	require.Error(t, (&RateLimitOptions{GlobalRPS: -1, Storage: "memory"}).Validate())
	require.Error(t, (&RateLimitOptions{GlobalRPS: 10, Storage: "redis"}).Validate())
	require.Error(t, (&RateLimitOptions{GlobalRPS: 10, Storage: "disk"}).Validate())
}

func TestOutboxOptions_Validate(t *testing.T) {
	require.NoError(t, (&OutboxOptions{}).Validate(), "disabled outbox is not validated")

	valid := OutboxOptions{
		Enabled:           true,
		RelayPollInterval: time.Second,
		RelayBatchSize:    100,
		RelayMaxAttempts:  25,
		CleanerRetention:  time.Hour,
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.RelayBatchSize = 0
	require.ErrorContains(t, bad.Validate(), "OUTBOX_RELAY_BATCH_SIZE")

	bad = valid
	bad.CleanerDeadRetention = -time.Minute
	require.ErrorContains(t, bad.Validate(), "OUTBOX_CLEANER_DEAD_RETENTION")
}

func TestConfiguration_DefaultTenant(t *testing.T) {
	c := &Configuration{DefaultTenantID: "not-a-uuid"}
	require.Equal(t, "00000000-0000-0000-0000-000000000000", c.DefaultTenant().String())

	c.DefaultTenantID = "6f1c1a8e-3a56-4c3b-9a0b-2bb0a3a8e111"
	require.Equal(t, "6f1c1a8e-3a56-4c3b-9a0b-2bb0a3a8e111", c.DefaultTenant().String())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
