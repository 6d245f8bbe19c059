// Package lockfile guards a LeadPipe state directory with an exclusive flock, so two processes
// never share the SQLite database or the whatsmeow device store.
//
// The kernel drops the flock when the holder exits, so a crashed process never blocks a restart;
// only the lock file itself may be left behind.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "leadpipe.lock"

// Info is what the holder writes into the lock file.
type Info struct {
	PID     int
	Started time.Time
}

func (i Info) String() string {
	if i.PID == 0 {
		return "unknown process"
	}
	s := fmt.Sprintf("PID %d", i.PID)
	if !i.Started.IsZero() {
		s += ", started " + i.Started.Format(time.RFC3339)
	}
	return s
}

func (i Info) encode() string {
	return fmt.Sprintf("pid=%d\nstarted=%s\n", i.PID, i.Started.UTC().Format(time.RFC3339))
}

// parseInfo reads key=value lines; unknown keys and malformed values are ignored.
func parseInfo(content string) Info {
	var info Info
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(value); err == nil && pid > 0 {
				info.PID = pid
			}
		case "started":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				info.Started = t
			}
		}
	}
	return info
}

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
	info Info
}

// AcquireLock creates stateDir if needed and takes the lock without blocking. A held lock
// returns a *LockError describing the holder.
func AcquireLock(stateDir string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("lockfile.AcquireLock: acquiring", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC would wipe the holder's info before we know whether we own the lock.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := readInfo(lockPath)
		lockErr := &LockError{LockPath: lockPath, Holder: holder, Running: processRunning(holder.PID), Cause: err}
		slog.Error("lockfile.AcquireLock: state directory in use", "lock_path", lockPath, "holder", holder.String(), "running", lockErr.Running)
		return nil, lockErr
	}

	info := Info{PID: os.Getpid(), Started: time.Now()}
	if err := writeInfo(file, info); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("lockfile.AcquireLock: state directory locked", "lock_path", lockPath, "pid", info.PID)
	return &Lock{file: file, path: lockPath, info: info}, nil
}

func writeInfo(file *os.File, info Info) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(info.encode()), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("lockfile.writeInfo: sync failed", "error", err)
	}
	return nil
}

// Path is the lock file's location.
func (l *Lock) Path() string { return l.path }

// Info is what this process wrote into the lock file.
func (l *Lock) Info() Info { return l.info }

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove while still holding the flock so a waiting process never sees our stale info.
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lock.Release: failed to remove lock file", "error", err, "lock_path", l.path)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Lock.Release: failed to unlock", "error", err, "lock_path", l.path)
	}
	err := l.file.Close()
	l.file = nil
	slog.Info("Lock.Release: state directory unlocked", "lock_path", l.path)
	if err != nil {
		return fmt.Errorf("failed to close lock file %s: %w", l.path, err)
	}
	return nil
}

// LockError reports that another process holds the state directory.
type LockError struct {
	LockPath string
	Holder   Info
	Running  bool
	Cause    error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "another LeadPipe instance is using this state directory (lock file %s, holder %s", e.LockPath, e.Holder)
	if e.Holder.PID != 0 && !e.Running {
		b.WriteString(", not running")
	}
	b.WriteString(")")
	if e.Holder.PID != 0 && !e.Running {
		fmt.Fprintf(&b, "; if no LeadPipe process uses %s, remove the lock file and restart", filepath.Dir(e.LockPath))
	}
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

func readInfo(lockPath string) Info {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return Info{}
	}
	return parseInfo(string(data))
}

// processRunning sends signal 0, which checks for existence without delivering anything.
func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
