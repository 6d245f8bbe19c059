package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireLockWritesHolder(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	if lock.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("Path() = %q", lock.Path())
	}
	content, err := os.ReadFile(lock.Path())
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	info := parseInfo(string(content))
	if info.PID != os.Getpid() {
		t.Errorf("lock file pid = %d, want %d", info.PID, os.Getpid())
	}
	if time.Since(info.Started) > time.Minute {
		t.Errorf("lock file start time = %v", info.Started)
	}
}

func TestLockConflict(t *testing.T) {
	dir := t.TempDir()

	lock1, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2, err := AcquireLock(dir)
	if err == nil {
		lock2.Release()
		t.Fatal("Second lock acquisition should have failed")
	}

	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Expected LockError, got: %T", err)
	}
	if lockErr.Holder.PID != os.Getpid() || !lockErr.Running {
		t.Errorf("holder = %+v running=%v", lockErr.Holder, lockErr.Running)
	}
	if !strings.Contains(err.Error(), "another LeadPipe instance") || !strings.Contains(err.Error(), dir) {
		t.Errorf("unhelpful error: %s", err)
	}

	// the failed attempt must not clobber the holder's info
	content, _ := os.ReadFile(lock1.Path())
	if parseInfo(string(content)).PID != os.Getpid() {
		t.Errorf("lock file rewritten by the losing process: %q", content)
	}
}

func TestReleaseRemovesFileAndAllowsReacquire(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Errorf("Lock file should be removed after release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("Multiple releases should be safe: %v", err)
	}

	again, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to reacquire lock after release: %v", err)
	}
	again.Release()
}

func TestAcquireLockCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Should be able to create directory and acquire lock: %v", err)
	}
	defer lock.Release()

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Directory should have been created: %s", dir)
	}
}

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name    string
		content string
		pid     int
		started bool
	}{
		{"full", "pid=12345\nstarted=2025-01-02T03:04:05Z\n", 12345, true},
		{"pid only", "pid=67890\n", 67890, false},
		{"extra keys", "host=a\npid=42\n", 42, false},
		{"invalid pid", "pid=abc", 0, false},
		{"no equals", "pid12345", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := parseInfo(tt.content)
			if info.PID != tt.pid || info.Started.IsZero() == tt.started {
				t.Errorf("parseInfo(%q) = %+v", tt.content, info)
			}
		})
	}
}

func TestLockErrorMessages(t *testing.T) {
	stale := &LockError{LockPath: "/state/leadpipe.lock", Holder: Info{PID: 99}, Running: false}
	if !strings.Contains(stale.Error(), "not running") || !strings.Contains(stale.Error(), "remove the lock file") {
		t.Errorf("stale holder message: %s", stale)
	}
	live := &LockError{LockPath: "/state/leadpipe.lock", Holder: Info{PID: 99}, Running: true}
	if strings.Contains(live.Error(), "remove the lock file") {
		t.Errorf("live holder should not suggest removal: %s", live)
	}
	if got := (Info{}).String(); got != "unknown process" {
		t.Errorf("empty Info = %q", got)
	}
}

func TestProcessRunning(t *testing.T) {
	if !processRunning(os.Getpid()) {
		t.Error("own process should be running")
	}
	if processRunning(0) || processRunning(-1) {
		t.Error("non-positive pids are never running")
	}
}
