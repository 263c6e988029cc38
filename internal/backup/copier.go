package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DirPrefix and DirLayout name every backup folder: backup_YYYYMMDD_HHMMSS
const (
	DirPrefix = "backup_"
	DirLayout = "20060102_150405"
)

// Request is a single backup job
type Request struct {
	SourcePath      string `json:"source_path"`
	DestinationRoot string `json:"destination_root"`
}

// Validate checks both paths before anything is written
func (r Request) Validate() error {
	if r.SourcePath == "" || r.DestinationRoot == "" {
		return &ValidationError{Err: ErrEmptyPath}
	}

	info, err := os.Stat(r.SourcePath)
	if err != nil {
		return &ValidationError{Field: "source", Path: r.SourcePath, Err: err}
	}
	if !info.IsDir() {
		return &ValidationError{Field: "source", Path: r.SourcePath, Err: fmt.Errorf("not a directory: %w", fs.ErrInvalid)}
	}

	if _, err := os.Stat(r.DestinationRoot); err != nil {
		return &ValidationError{Field: "destination", Path: r.DestinationRoot, Err: err}
	}
	return nil
}

// Result describes a finished backup
type Result struct {
	RunID    string        `json:"run_id"`
	Path     string        `json:"path"`
	Files    int           `json:"files"`
	Bytes    int64         `json:"bytes"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// entry is one item found under the source
type entry struct {
	rel  string
	mode fs.FileMode
	size int64
	mod  time.Time
}

// Copier copies a source directory into a fresh timestamped folder
type Copier struct {
	Now        func() time.Time
	BufferSize int
	// Progress, when set, receives the completed percentage (0-100)
	Progress func(percent float64)
}

func NewCopier() *Copier {
	return &Copier{Now: time.Now, BufferSize: 64 * 1024}
}

// TargetDir returns the folder a backup started at t is written to
func TargetDir(root string, t time.Time) string {
	return filepath.Join(root, DirPrefix+t.Format(DirLayout))
}

// Backup copies the contents of req.SourcePath into a new folder under
// req.DestinationRoot and returns where it went.
func (c *Copier) Backup(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	started := c.now()
	res := Result{
		RunID:   uuid.NewString(),
		Path:    TargetDir(req.DestinationRoot, started),
		Started: started,
	}

	_, statErr := os.Stat(res.Path)
	created := errors.Is(statErr, fs.ErrNotExist)
	if err := os.MkdirAll(res.Path, 0755); err != nil {
		return res, wrapIO("create target directory", res.Path, err)
	}

	err := c.copyTree(ctx, req.SourcePath, &res)
	res.Duration = c.now().Sub(started)
	if err != nil {
		// drop a target this run created but put no files in; empty
		// subfolders and links go with it
		if created && res.Files == 0 {
			os.RemoveAll(res.Path)
		}
		return res, err
	}
	return res, nil
}

func (c *Copier) copyTree(ctx context.Context, src string, res *Result) error {
	entries, err := scanDirectory(src)
	if err != nil {
		return err
	}

	total := len(entries)
	if total == 0 {
		c.report(100)
		return nil
	}

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return &Error{Kind: KindOther, Op: "copy", Path: src, Err: err}
		}

		from := filepath.Join(src, e.rel)
		to := filepath.Join(res.Path, e.rel)

		switch {
		case e.mode.IsDir():
			if err := os.MkdirAll(to, e.mode.Perm()|0700); err != nil {
				return wrapIO("create directory", to, err)
			}
		case e.mode&fs.ModeSymlink != 0:
			if err := copySymlink(from, to); err != nil {
				return err
			}
		case e.mode.IsRegular():
			if err := c.copyFile(from, to, e); err != nil {
				return err
			}
			res.Files++
			res.Bytes += e.size
		default:
			// sockets, devices and pipes are not backed up
			continue
		}

		c.report(float64(i+1) / float64(total) * 100)
	}
	return nil
}

func (c *Copier) report(percent float64) {
	if c.Progress != nil {
		c.Progress(percent)
	}
}

func (c *Copier) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// scanDirectory lists everything below dir, parents before children
func scanDirectory(dir string) ([]entry, error) {
	var entries []entry

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return wrapIO("scan", path, err)
		}
		if path == dir {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return wrapIO("stat", path, err)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return wrapIO("scan", path, err)
		}

		entries = append(entries, entry{
			rel:  rel,
			mode: info.Mode(),
			size: info.Size(),
			mod:  info.ModTime(),
		})
		return nil
	})

	return entries, err
}

// copyFile copies one regular file, overwriting, and keeps its modification time
func (c *Copier) copyFile(src, dst string, e entry) error {
	source, err := os.Open(src)
	if err != nil {
		return wrapIO("open", src, err)
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return wrapIO("create directory", filepath.Dir(dst), err)
	}

	destination, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, e.mode.Perm())
	if err != nil {
		return wrapIO("create", dst, err)
	}

	size := c.BufferSize
	if size <= 0 {
		size = 64 * 1024
	}
	if _, err := io.CopyBuffer(destination, source, make([]byte, size)); err != nil {
		destination.Close()
		return wrapIO("copy", dst, err)
	}
	if err := destination.Close(); err != nil {
		return wrapIO("close", dst, err)
	}

	if err := os.Chtimes(dst, e.mod, e.mod); err != nil {
		return wrapIO("set times", dst, err)
	}
	return nil
}

func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return wrapIO("read link", src, err)
	}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return wrapIO("replace link", dst, err)
		}
	}
	if err := os.Symlink(link, dst); err != nil {
		return wrapIO("create link", dst, err)
	}
	return nil
}
