// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package filelock provides mutual exclusion between processes through a lock file.
//
// The lock for "data.json" is the file "data.json.lock", created exclusively. It does
// not depend on flock or fcntl and works on any filesystem that honours O_EXCL. A lock
// file left behind by a crashed process has to be removed by hand.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
	"github.com/spf13/afero"
)

const (
	// DefaultTimeout is how long Acquire waits for the lock.
	DefaultTimeout = 10 * time.Second
	// DefaultDelay is the pause between attempts.
	DefaultDelay = 50 * time.Millisecond

	lockSuffix = ".lock"
)

var (
	// ErrTimeout is returned when the lock could not be acquired within the timeout.
	ErrTimeout = errors.New("timed out waiting for lock")
	// ErrInvalidTiming is returned when the delay and timeout are not positive or the delay exceeds the timeout.
	ErrInvalidTiming = errors.New("delay and timeout must be positive with delay <= timeout")
)

// FsFactory returns the filesystem lock files are created on.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Option configures a Lock.
type Option func(l *Lock)

// WithTimeout sets how long Acquire waits.
func WithTimeout(d time.Duration) Option {
	return func(l *Lock) {
		l.timeout = d
	}
}

// WithDelay sets the pause between attempts.
func WithDelay(d time.Duration) Option {
	return func(l *Lock) {
		l.delay = d
	}
}

// Lock is a lock file guarding another file. It is not safe for concurrent use by
// multiple goroutines; each holder should create its own Lock.
type Lock struct {
	fs       afero.Fs
	name     string
	lockFile string
	timeout  time.Duration
	delay    time.Duration
	file     afero.File
}

// New prepares a lock for name. It does not touch the filesystem.
func New(name string, opts ...Option) (*Lock, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}

	l := &Lock{
		fs:       FsFactory(),
		name:     abs,
		lockFile: abs + lockSuffix,
		timeout:  DefaultTimeout,
		delay:    DefaultDelay,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.delay <= 0 || l.timeout <= 0 || l.delay > l.timeout {
		return nil, fmt.Errorf("%w: delay %s, timeout %s", ErrInvalidTiming, l.delay, l.timeout)
	}

	return l, nil
}

// Name returns the absolute path of the guarded file.
func (l *Lock) Name() string {
	return l.name
}

// Path returns the absolute path of the lock file.
func (l *Lock) Path() string {
	return l.lockFile
}

// Locked reports whether this Lock currently holds the lock file.
func (l *Lock) Locked() bool {
	return l.file != nil
}

// Acquire creates the lock file, retrying every delay until the timeout expires or ctx
// is done. Acquiring a lock that is already held by this Lock is a no-op.
func (l *Lock) Acquire(ctx context.Context) error {
	if l.Locked() {
		return nil
	}

	deadline := time.Now().Add(l.timeout)
	attempts := 0

	for {
		attempts++

		f, err := l.fs.OpenFile(l.lockFile, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err == nil {
			l.file = f
			ctxlog.Debug(ctx, "filelock", "detail", "lock acquired", "lock", l.lockFile, "attempts", attempts)

			return nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return err
		}

		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrTimeout, l.lockFile, l.timeout)
		}

		t := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Release closes and removes the lock file. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.Locked() {
		return nil
	}

	closeErr := l.file.Close()
	l.file = nil

	return errors.Join(closeErr, l.fs.Remove(l.lockFile))
}

// With runs fn while holding the lock and releases it afterwards.
func (l *Lock) With(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := l.Acquire(ctx); err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, l.Release())
	}()

	return fn(ctx)
}
