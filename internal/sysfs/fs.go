// Package sysfs is the key-value view over the kernel pseudo-filesystems.
// Every read and write of /proc and /sys goes through an afero.Fs so callers
// can run against an in-memory tree.
package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const (
	DefaultProcRoot = "/proc"
	DefaultSysRoot  = "/sys"
)

// ErrFileAccess marks any failed read or write of a pseudo-file, including
// content that does not parse.
var ErrFileAccess = errors.New("file access error")

type FS struct {
	fs       afero.Fs
	procRoot string
	sysRoot  string
}

func New(fs afero.Fs, procRoot, sysRoot string) *FS {
	if procRoot == "" {
		procRoot = DefaultProcRoot
	}
	if sysRoot == "" {
		sysRoot = DefaultSysRoot
	}
	return &FS{fs: fs, procRoot: procRoot, sysRoot: sysRoot}
}

// NewOS returns an FS backed by the host filesystem.
func NewOS(procRoot, sysRoot string) *FS {
	return New(afero.NewOsFs(), procRoot, sysRoot)
}

func (f *FS) ProcRoot() string { return f.procRoot }

func (f *FS) SysRoot() string { return f.sysRoot }

// ProcPath joins elem under the procfs mount.
func (f *FS) ProcPath(elem ...string) string {
	return filepath.Join(append([]string{f.procRoot}, elem...)...)
}

// SysPath joins elem under the sysfs mount.
func (f *FS) SysPath(elem ...string) string {
	return filepath.Join(append([]string{f.sysRoot}, elem...)...)
}

func (f *FS) ReadString(path string) (string, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return "", accessError("read", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FS) ReadInt(path string) (int, error) {
	value, err := f.ReadString(path)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, accessError("parse", path, errors.New("empty file"))
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, accessError("parse", path, err)
	}
	return parsed, nil
}

// ReadFields returns the whitespace separated tokens of the file.
func (f *FS) ReadFields(path string) ([]string, error) {
	value, err := f.ReadString(path)
	if err != nil {
		return nil, err
	}
	return strings.Fields(value), nil
}

// ReadLines returns the file split on newlines, empty lines dropped.
func (f *FS) ReadLines(path string) ([]string, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, accessError("read", path, err)
	}
	raw := strings.Split(string(data), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// IsFile reports whether path exists and is not a directory.
func (f *FS) IsFile(path string) bool {
	info, err := f.fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Write replaces the content of an existing file. The file is never created:
// pseudo-files that are absent cannot be written.
func (f *FS) Write(path, value string) error {
	file, err := f.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return accessError("open", path, err)
	}
	if _, err := file.WriteString(value); err != nil {
		file.Close()
		return accessError("write", path, err)
	}
	if err := file.Close(); err != nil {
		return accessError("close", path, err)
	}
	return nil
}

func accessError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrFileAccess, op, path, err)
}
