// Package platform provides the clipboard and file-save capabilities the
// console controller depends on.
package platform

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/johan-st/query-console/internal/console"
)

// Clipboard modes accepted by NewClipboard.
const (
	ClipboardAuto   = "auto"
	ClipboardSystem = "system"
	ClipboardOSC52  = "osc52"
	ClipboardNone   = "none"
)

// SystemClipboard writes to the local desktop clipboard.
type SystemClipboard struct{}

// WriteText implements console.ClipboardWriter.
func (SystemClipboard) WriteText(_ context.Context, text string) error {
	if clipboard.Unsupported {
		return console.ErrClipboardUnavailable
	}
	return clipboard.WriteAll(text)
}

// OSC52Clipboard asks the terminal on the other end of Out to set its
// clipboard. It works over SSH where no local clipboard exists.
type OSC52Clipboard struct {
	Out  io.Writer
	Tmux bool
}

// WriteText implements console.ClipboardWriter.
func (c OSC52Clipboard) WriteText(_ context.Context, text string) error {
	if c.Out == nil {
		return console.ErrClipboardUnavailable
	}
	seq := osc52.New(text)
	if c.Tmux {
		seq = seq.Tmux()
	}
	if _, err := seq.WriteTo(c.Out); err != nil {
		return fmt.Errorf("write osc52 sequence: %w", err)
	}
	return nil
}

type disabledClipboard struct{}

func (disabledClipboard) WriteText(context.Context, string) error {
	return console.ErrClipboardUnavailable
}

// NewClipboard returns the clipboard writer for a configured mode.
// In auto mode the system clipboard is used when available, otherwise
// OSC52 sequences are written to out.
func NewClipboard(mode string, out io.Writer) (console.ClipboardWriter, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ClipboardAuto:
		if !clipboard.Unsupported {
			return SystemClipboard{}, nil
		}
		return OSC52Clipboard{Out: out}, nil
	case ClipboardSystem:
		return SystemClipboard{}, nil
	case ClipboardOSC52:
		return OSC52Clipboard{Out: out}, nil
	case ClipboardNone:
		return disabledClipboard{}, nil
	default:
		return nil, fmt.Errorf("unknown clipboard mode: %s", mode)
	}
}
