// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package switcher

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// fileID identifies a filesystem object independent of its path.
type fileID struct {
	device uint64
	inode  uint64
}

func statID(path string) (fileID, error) {
	var stat unix.Stat_t
	if err := unix.Lstat(path, &stat); err != nil {
		return fileID{}, err
	}
	return fileID{device: uint64(stat.Dev), inode: uint64(stat.Ino)}, nil
}

// listen binds a Unix socket at path that only the current user can
// connect to. A socket already at path is assumed stale and replaced;
// anything else at path is an error.
//
// The umask is process-wide, so files created concurrently by other
// goroutines during the bind also get the restrictive mask.
func listen(path string) (*net.UnixListener, fileID, error) {
	if err := removeStaleSocket(path); err != nil {
		return nil, fileID{}, err
	}

	previousMask := unix.Umask(0o177)
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	unix.Umask(previousMask)
	if err != nil {
		return nil, fileID{}, fmt.Errorf("listening on %s: %w", path, err)
	}
	// Removal is done by removeSocket, which checks the file is still
	// ours first.
	listener.SetUnlinkOnClose(false)

	id, err := statID(path)
	if err != nil {
		listener.Close()
		return nil, fileID{}, fmt.Errorf("stat of %s after bind: %w", path, err)
	}
	return listener, id, nil
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if info.Mode().Type() != fs.ModeSocket {
		return fmt.Errorf("refusing to replace %s: not a socket (%s)", path, info.Mode().Type())
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	return nil
}

// removeSocket deletes path if it is still the object identified by id.
// It reports whether the file was removed.
func removeSocket(path string, id fileID) (bool, error) {
	current, err := statID(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if current != id {
		return false, nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return true, nil
}
