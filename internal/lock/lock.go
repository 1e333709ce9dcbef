// Package lock guards a destination tree against two studymanager
// invocations materializing and running cases in it at the same time.
package lock

import (
	"fmt"
	"os"
	"syscall"
)

// DestinationLock is an advisory flock on a marker file at the root of the
// destination directory. The holding process records its PID in the file so
// a blocked user can see who owns the tree.
type DestinationLock struct {
	path string
	file *os.File
}

func New(path string) *DestinationLock {
	return &DestinationLock{path: path}
}

// TryLock acquires the lock without blocking. Failure means another
// studymanager run owns the destination.
func (l *DestinationLock) TryLock() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("destination in use by another studymanager run: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		l.abort(f)
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		l.abort(f)
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		l.abort(f)
		return fmt.Errorf("write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		l.abort(f)
		return fmt.Errorf("sync lock file: %w", err)
	}

	l.file = f
	return nil
}

func (l *DestinationLock) abort(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
}

func (l *DestinationLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("release lock: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}

	os.Remove(l.path)
	l.file = nil
	return nil
}
