// Package nodelog wires up this module's slog setup: slogcolor on
// stderr, the same verbosity switch the teacher's main.go exposes via
// -verbose, plus a "node" attribute every log line from a given node
// process carries so a mixed cloud/edge/device log stream stays
// attributable at a glance.
package nodelog

import (
	"context"
	"log/slog"
	"os"

	"github.com/MatusOllah/slogcolor"
	"github.com/davecgh/go-spew/spew"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// Init installs the process-wide slog default handler, matching the
// teacher's main.go: slogcolor to stderr, level gated on verbose.
func Init(verbose bool) {
	opts := slogcolor.DefaultOptions
	if verbose {
		opts.Level = slog.LevelDebug
	} else {
		opts.Level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, opts)))
}

// For returns a logger with a "node" attribute identifying nodeID,
// for call sites that want every line they emit to self-identify in
// a multi-node log stream.
func For(nodeID message.NodeId) *slog.Logger {
	return slog.Default().With("node", nodeID.String())
}

// Dump logs a go-spew structural dump of v at debug level, for the
// rare case a flat key=value slog line loses too much of a nested
// payload's shape to be useful (a malformed or unexpected message
// worth a full look rather than a one-line summary).
func Dump(log *slog.Logger, label string, v any) {
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	log.Debug(label, "dump", spew.Sdump(v))
}
