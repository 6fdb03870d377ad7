// Package archive stores raw messages in a directory tree keyed by year and
// a stable identifier, one directory per message:
//
//	<root>/<year|None>/<id>/
//	    message.eml
//	    metadata.json
//	    message.txt
//	    message.html
//	    message.pdf
//	    attachments/<name>
//
// An entry directory is created once and never rewritten. Its existence is
// what makes a later run skip the message.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/imapbox/imapbox/pkgs/logger"
)

// Artifact file names inside an entry.
const (
	RawFile        = "message.eml"
	MetadataFile   = "metadata.json"
	TextFile       = "message.txt"
	HTMLFile       = "message.html"
	PDFFile        = "message.pdf"
	AttachmentsDir = "attachments"
)

// Status tells whether Persist wrote a new entry.
type Status int

const (
	Saved Status = iota + 1
	AlreadyPresent
)

func (s Status) String() string {
	switch s {
	case Saved:
		return "saved"
	case AlreadyPresent:
		return "already present"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result describes the outcome of one Persist call.
type Result struct {
	Status Status
	Key    Key
	Dir    string
	// Warnings lists artifact extraction failures. The entry exists but is
	// incomplete when this is non-empty.
	Warnings []error
}

// Options configures a Writer.
type Options struct {
	Root string
	// Renderer produces message.pdf. Nil disables rendering.
	Renderer Renderer
	Logger   *zerolog.Logger
}

// Writer persists messages below one archive root.
type Writer struct {
	root     string
	renderer Renderer
	log      *zerolog.Logger
}

// NewWriter returns a Writer for opts.Root.
func NewWriter(opts Options) *Writer {
	w := &Writer{
		root:     opts.Root,
		renderer: opts.Renderer,
		log:      opts.Logger,
	}
	if w.log == nil {
		w.log = logger.Nop()
	}
	return w
}

// Root returns the archive root directory.
func (w *Writer) Root() string { return w.root }

// Persist stores raw unless its entry already exists. The error is non-nil
// only when the entry directory itself could not be created.
func (w *Writer) Persist(ctx context.Context, raw []byte) (Result, error) {
	key := DeriveKey(raw)
	dir := key.Path(w.root)
	res := Result{Key: key, Dir: dir}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return res, fmt.Errorf("create year directory: %w", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			res.Status = AlreadyPresent
			return res, nil
		}
		return res, fmt.Errorf("create entry directory: %w", err)
	}

	res.Status = Saved
	res.Warnings = w.populate(ctx, dir, raw)
	for _, warn := range res.Warnings {
		w.log.Error().Err(warn).Str("dir", dir).Msg("Failed to extract message artifact")
	}
	return res, nil
}

// populate writes every artifact it can. Failures do not stop the remaining
// steps and nothing already written is removed.
func (w *Writer) populate(ctx context.Context, dir string, raw []byte) []error {
	var warnings []error
	warn := func(step string, err error) {
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", step, err))
		}
	}

	warn("write raw message", os.WriteFile(filepath.Join(dir, RawFile), raw, 0o644))

	msg, err := Parse(raw)
	if err != nil {
		warn("parse message", err)
		return warnings
	}

	names, err := writeAttachments(filepath.Join(dir, AttachmentsDir), msg.Attachments)
	warn("write attachments", err)
	warn("write bodies", writeBodies(dir, msg))
	warn("write metadata", writeMetadata(filepath.Join(dir, MetadataFile), msg, names))

	if w.renderer != nil {
		warn("render pdf", w.renderer.Render(ctx, renderSource(msg), filepath.Join(dir, PDFFile)))
	}
	return warnings
}
