package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

// pendingFile is a temp file that replaces its target on commit.
type pendingFile interface {
	io.Writer
	CloseAtomicallyReplace() error
	Cleanup() error
}

// Export writes the user's tasks and chats for every day in the range, plus
// the profile, to opts.OutputPath. Days without data are left out. The file
// appears atomically once the archive is complete.
func Export(ctx context.Context, stores Stores, opts ExportOptions) (*ExportResult, error) {
	days, err := normalizeExportOptions(stores, &opts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	pending, err := createPending(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	gz := gzip.NewWriter(pending)
	tw := tar.NewWriter(gz)

	now := time.Now().UTC()
	manifest := &Manifest{
		Version:    FormatVersion,
		CreatedAt:  now,
		AppVersion: opts.AppVersion,
		UserID:     opts.UserID,
		From:       core.DateKey(opts.From),
		To:         core.DateKey(opts.To),
		Days:       []string{},
		Files:      []FileEntry{},
	}
	w := &archiveWriter{tw: tw, manifest: manifest, modTime: now}

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := core.DateKey(day)
		tasks, err := stores.Tasks.ListTasks(ctx, opts.UserID, day)
		if err != nil {
			return nil, fmt.Errorf("listing tasks for %s: %w", key, err)
		}
		var msgs []core.ChatMessage
		if stores.Chats != nil {
			if msgs, err = stores.Chats.ListMessages(ctx, opts.UserID, day); err != nil {
				return nil, fmt.Errorf("listing messages for %s: %w", key, err)
			}
		}
		if len(tasks) == 0 && len(msgs) == 0 {
			continue
		}

		if tasks == nil {
			tasks = []*core.Task{}
		}
		if err := w.addJSON(dayArchivePath(key, tasksFileName), tasks); err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			if err := w.addJSON(dayArchivePath(key, chatFileName), msgs); err != nil {
				return nil, err
			}
		}
		manifest.Days = append(manifest.Days, key)
		manifest.TaskCount += len(tasks)
		manifest.MessageCount += len(msgs)
	}

	if stores.Profiles != nil {
		p, err := stores.Profiles.GetProfile(ctx, opts.UserID)
		switch {
		case err == nil:
			if err := w.addJSON(profileArchivePath, p); err != nil {
				return nil, err
			}
			manifest.ProfilePresent = true
		case !core.IsCategory(err, core.ErrCatNotFound):
			return nil, fmt.Errorf("reading profile: %w", err)
		}
	}

	sortFileEntries(manifest.Files)
	if err := w.addManifest(); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip stream: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return nil, fmt.Errorf("writing snapshot file: %w", err)
	}
	return &ExportResult{OutputPath: opts.OutputPath, Manifest: manifest}, nil
}

// addManifest writes the manifest last; it is not listed in its own Files.
func (w *archiveWriter) addManifest() error {
	files := w.manifest.Files
	if err := w.addJSON(manifestArchivePath, w.manifest); err != nil {
		return err
	}
	w.manifest.Files = files
	return nil
}

func normalizeExportOptions(stores Stores, opts *ExportOptions) ([]time.Time, error) {
	if stores.Tasks == nil {
		return nil, core.ErrConfig("NO_TASK_STORE", "export needs a task store")
	}
	if opts.OutputPath == "" {
		return nil, core.ErrValidation(core.CodeInvalidInput, "output path is required")
	}
	if opts.UserID == "" {
		return nil, core.ErrValidation(core.CodeInvalidInput, "user id is required")
	}
	if opts.To.IsZero() {
		opts.To = opts.From
	}
	from := startOfDay(opts.From)
	to := startOfDay(opts.To)
	if to.Before(from) {
		return nil, core.ErrValidation(core.CodeInvalidInput, "range ends before it starts")
	}

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if len(days) == maxDays {
			return nil, core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("range is longer than %d days", maxDays))
		}
		days = append(days, d)
	}
	return days, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
