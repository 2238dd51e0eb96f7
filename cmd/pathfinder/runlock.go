package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

const (
	// runLockName is the lock held by the running scan.
	runLockName = "scan.lock"

	// pidFileName records the pid of the running scan for the stop command.
	pidFileName = "scan.pid"
)

var (
	// ErrScanRunning is returned when another scan holds the run lock.
	ErrScanRunning = errors.New("another scan is already running")

	// ErrNoScanRunning is returned by stop when no scan holds the run lock.
	ErrNoScanRunning = errors.New("no scan is running")
)

// runLock is the exclusive lock of a running scan.
type runLock struct {
	lock    *flock.Flock
	pidPath string
}

// acquireRunLock takes the run lock in dir and records the current pid.
func acquireRunLock(dir string) (*runLock, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, runLockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrScanRunning
	}

	pidPath := filepath.Join(dir, pidFileName)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0600); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}

	return &runLock{lock: lock, pidPath: pidPath}, nil
}

// Release removes the pid file and releases the lock.
func (r *runLock) Release() error {
	_ = os.Remove(r.pidPath)
	return r.lock.Unlock()
}

// runningScanPID returns the pid of the scan holding the run lock in dir.
func runningScanPID(dir string) (int, error) {
	lock := flock.New(filepath.Join(dir, runLockName))
	ok, err := lock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("check run lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return 0, ErrNoScanRunning
	}

	data, err := os.ReadFile(filepath.Join(dir, pidFileName)) //nolint:gosec // path is built from the state directory
	if err != nil {
		return 0, fmt.Errorf("failed to read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file content %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}
