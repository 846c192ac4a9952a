// Package clip copies conversation text out of the terminal client.
package clip

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

// Method is the mechanism that made the text available.
type Method string

const (
	MethodNative Method = "native" // OS clipboard
	MethodOSC52  Method = "osc52"  // terminal escape sequence
	MethodFile   Method = "file"   // temp file; no clipboard was reachable
)

// Result reports how text was copied.
type Result struct {
	Method   Method
	FilePath string // set for MethodFile only
}

// osc52Limit is conservative; some terminals drop larger payloads.
const osc52Limit = 100_000

// Copier tries the native clipboard, then OSC52, then a temp file.
type Copier struct {
	native  func(string) error
	osc52   func(string) error
	tempDir string
}

// Option configures a Copier.
type Option func(*Copier)

// WithTempDir sets where the file fallback writes.
func WithTempDir(dir string) Option {
	return func(c *Copier) { c.tempDir = dir }
}

// WithNative replaces the native clipboard writer.
func WithNative(fn func(string) error) Option {
	return func(c *Copier) { c.native = fn }
}

// WithOSC52 replaces the terminal clipboard writer.
func WithOSC52(fn func(string) error) Option {
	return func(c *Copier) { c.osc52 = fn }
}

// New creates a Copier writing OSC52 sequences to stderr, which keeps them
// out of the bubbletea renderer on stdout.
func New(opts ...Option) *Copier {
	c := &Copier{
		native: atotto.WriteAll,
		osc52:  func(text string) error { return writeOSC52(os.Stderr, text) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Copy makes text available, falling back until one mechanism works.
func (c *Copier) Copy(text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, core.ErrValidation(core.CodeInvalidInput, "nothing to copy")
	}
	if err := c.native(text); err == nil {
		return Result{Method: MethodNative}, nil
	}
	if err := c.osc52(text); err == nil {
		return Result{Method: MethodOSC52}, nil
	}
	path, err := c.writeTempFile(text)
	if err != nil {
		return Result{}, fmt.Errorf("writing clipboard fallback: %w", err)
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

func writeOSC52(w *os.File, text string) error {
	if !term.IsTerminal(int(w.Fd())) {
		return errors.New("not a terminal")
	}
	return writeSequence(w, text)
}

func writeSequence(w io.Writer, text string) error {
	if len(text) > osc52Limit {
		return fmt.Errorf("text too large for OSC52 (%d bytes > %d)", len(text), osc52Limit)
	}
	seq := osc52.New(text).Limit(osc52Limit)
	switch {
	case os.Getenv("TMUX") != "":
		seq = seq.Tmux()
	case os.Getenv("STY") != "":
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(w)
	return err
}

func (c *Copier) writeTempFile(text string) (path string, err error) {
	f, err := os.CreateTemp(c.tempDir, "aiplanner-copy-*.txt")
	if err != nil {
		return "", err
	}
	path = f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if _, err = f.WriteString(text); err != nil {
		_ = f.Close()
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// Transcript renders messages as plain text, one block per message.
// Interactive option sets are omitted.
func Transcript(msgs []core.ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		text := strings.TrimSpace(m.Text())
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", m.Role, text)
	}
	return b.String()
}

// LastAssistant returns the text of the newest assistant message.
func LastAssistant(msgs []core.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleAssistant {
			if text := strings.TrimSpace(msgs[i].Text()); text != "" {
				return text
			}
		}
	}
	return ""
}
