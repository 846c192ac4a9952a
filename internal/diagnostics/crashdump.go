package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
)

// CrashDump is what a panic leaves behind.
type CrashDump struct {
	Timestamp  time.Time         `json:"timestamp"`
	ProcessID  int               `json:"process_id"`
	GOOS       string            `json:"goos"`
	GOARCH     string            `json:"goarch"`
	Command    string            `json:"command,omitempty"`
	PanicValue string            `json:"panic_value"`
	StackTrace string            `json:"stack_trace"`
	System     Snapshot          `json:"system"`
	Context    map[string]string `json:"context,omitempty"`
}

// CrashDumpWriter persists crash dumps, keeping the newest maxFiles.
type CrashDumpWriter struct {
	dir       string
	maxFiles  int
	command   string
	logger    *logging.Logger
	collector *Collector
	context   atomic.Value // map[string]string
	mu        sync.Mutex
}

// NewCrashDumpWriter creates a writer for dir. command names the running
// subcommand.
func NewCrashDumpWriter(dir, command string, maxFiles int, collector *Collector, logger *logging.Logger) *CrashDumpWriter {
	if maxFiles <= 0 {
		maxFiles = 10
	}
	w := &CrashDumpWriter{
		dir:       dir,
		maxFiles:  maxFiles,
		command:   command,
		logger:    logging.OrNop(logger),
		collector: collector,
	}
	w.context.Store(map[string]string{})
	return w
}

// SetContext records key=value in every later dump, such as the active session.
func (w *CrashDumpWriter) SetContext(key, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.context.Load().(map[string]string)
	next := make(map[string]string, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	next[key] = value
	w.context.Store(next)
}

// Write persists a dump for panicValue and returns its path.
func (w *CrashDumpWriter) Write(panicValue any) (string, error) {
	dump := CrashDump{
		Timestamp:  time.Now().UTC(),
		ProcessID:  os.Getpid(),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
		Command:    w.command,
		PanicValue: fmt.Sprint(panicValue),
		StackTrace: string(debug.Stack()),
		Context:    w.context.Load().(map[string]string),
	}
	if w.collector != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		dump.System = w.collector.Collect(ctx)
		cancel()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return "", fmt.Errorf("creating crash dump dir: %w", err)
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling crash dump: %w", err)
	}
	path := filepath.Join(w.dir, fmt.Sprintf("crash-%s.json", dump.Timestamp.Format("2006-01-02T15-04-05.000")))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing crash dump: %w", err)
	}
	w.prune()
	return path, nil
}

// RecoverAndDump writes a dump for a panic in progress and re-panics.
// Use as: defer w.RecoverAndDump()
func (w *CrashDumpWriter) RecoverAndDump() {
	r := recover()
	if r == nil {
		return
	}
	if path, err := w.Write(r); err != nil {
		w.logger.Error("failed to write crash dump", "error", err, "panic", fmt.Sprint(r))
	} else {
		w.logger.Error("crash dump written", "path", path, "panic", fmt.Sprint(r))
	}
	panic(r)
}

// prune must be called with w.mu held.
func (w *CrashDumpWriter) prune() {
	dumps, err := listDumps(w.dir)
	if err != nil {
		return
	}
	for len(dumps) > w.maxFiles {
		if err := os.Remove(filepath.Join(w.dir, dumps[0])); err != nil {
			w.logger.Warn("failed to remove old crash dump", "path", dumps[0], "error", err)
		}
		dumps = dumps[1:]
	}
}

// listDumps returns dump file names oldest first. Names embed the timestamp
// so lexical order is chronological.
func listDumps(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// LatestCrashDump loads the newest dump in dir.
func LatestCrashDump(dir string) (*CrashDump, error) {
	names, err := listDumps(dir)
	if err != nil {
		return nil, fmt.Errorf("reading crash dump dir: %w", err)
	}
	if len(names) == 0 {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(filepath.Join(dir, names[len(names)-1]))
	if err != nil {
		return nil, fmt.Errorf("reading crash dump: %w", err)
	}
	var dump CrashDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("parsing crash dump: %w", err)
	}
	return &dump, nil
}
