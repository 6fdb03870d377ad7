package archive

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Renderer turns the HTML of a message into a document at outPath.
type Renderer interface {
	Render(ctx context.Context, html, outPath string) error
}

// Wkhtmltopdf runs the wkhtmltopdf binary at Path, feeding the HTML on stdin.
type Wkhtmltopdf struct {
	Path string
	// Args are passed before the input and output arguments.
	Args []string
}

func (r Wkhtmltopdf) Render(ctx context.Context, html, outPath string) error {
	args := append([]string{"--quiet", "--encoding", "utf-8"}, r.Args...)
	args = append(args, "-", outPath)

	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdin = strings.NewReader(html)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", r.Path, err, msg)
		}
		return fmt.Errorf("%s: %w", r.Path, err)
	}
	return nil
}
