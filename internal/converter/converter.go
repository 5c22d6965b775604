// Package converter drives the external PPTX to image conversion tool.
//
// The tool is a black box: it is started with the source deck, an output
// directory and a target resolution, prints PROGRESS:<percent> lines while it
// works and ERROR: <reason> on failure, and leaves slide_NNN.jpg files plus a
// metadata.json sidecar in the output directory.
package converter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"syncdisplay/internal/assets"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

// Options is the target resolution of a conversion.
type Options struct {
	TargetWidth    int
	TargetHeight   int
	ThumbnailWidth int
}

// Result is what a successful conversion produced.
type Result struct {
	SlideCount int
	Slides     []models.SlideText
}

// ProgressFunc receives percent-complete values as the tool reports them.
type ProgressFunc func(percent int)

// Converter is the conversion collaborator contract.
type Converter interface {
	Convert(ctx context.Context, sourceFile, outputDir string, opts Options, progress ProgressFunc) (*Result, error)
}

// Error is a conversion failure with the tool's human-readable reason.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("conversion failed: %v", e.Err)
	}
	return "conversion failed: " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExecConverter runs the conversion tool as a subprocess.
type ExecConverter struct {
	Command string
	// Args are prepended to the per-conversion flags, e.g. the script path
	// when Command is a python interpreter.
	Args    []string
	Timeout time.Duration
	log     *observability.Logger
}

// NewExecConverter creates a converter that runs command with args.
func NewExecConverter(command string, args []string, timeout time.Duration, log *observability.Logger) *ExecConverter {
	return &ExecConverter{
		Command: command,
		Args:    args,
		Timeout: timeout,
		log:     log.WithComponent("converter"),
	}
}

// Convert runs the tool and reads its output by the naming convention.
func (c *ExecConverter) Convert(ctx context.Context, sourceFile, outputDir string, opts Options, progress ProgressFunc) (*Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.Args...),
		"--input", sourceFile,
		"--output", outputDir,
		"--width", strconv.Itoa(opts.TargetWidth),
		"--height", strconv.Itoa(opts.TargetHeight),
	)
	if opts.ThumbnailWidth > 0 {
		args = append(args, "--thumbnail-width", strconv.Itoa(opts.ThumbnailWidth))
	}

	cmd := exec.CommandContext(ctx, c.Command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &Error{Err: err}
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.log.Info().Str("source", sourceFile).Str("output", outputDir).Msg("Starting conversion")
	if err := cmd.Start(); err != nil {
		return nil, &Error{Reason: "failed to start converter", Err: err}
	}

	scan := scanOutput(stdout, progress, c.log)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, &Error{Reason: "conversion cancelled or timed out", Err: ctx.Err()}
	}
	if waitErr != nil || scan.reason != "" {
		reason := scan.reason
		if reason == "" {
			reason = strings.TrimSpace(stderr.String())
		}
		if waitErr == nil {
			waitErr = errors.New(reason)
		}
		return nil, &Error{Reason: reason, Err: waitErr}
	}

	return ReadResult(outputDir)
}

// ReadResult collects a finished conversion's slide count and text.
func ReadResult(outputDir string) (*Result, error) {
	deck, err := assets.LoadDeck("", outputDir)
	if err != nil {
		return nil, &Error{Reason: "converter produced no slides", Err: err}
	}
	meta, err := assets.ReadMetadata(outputDir)
	if err != nil {
		return nil, &Error{Reason: "converter produced unreadable metadata", Err: err}
	}

	result := &Result{SlideCount: deck.Len(), Slides: make([]models.SlideText, deck.Len())}
	if meta != nil {
		copy(result.Slides, meta.Slides)
	}
	return result, nil
}

type scanResult struct {
	reason string
}

// Longest output line scanOutput parses. The tool echoes LibreOffice output
// verbatim, so lines past the bufio default are expected.
const maxOutputLine = 1 << 20

// scanOutput relays progress lines and remembers the first error line. r is
// always read to EOF so the tool never blocks on a full pipe.
func scanOutput(r io.Reader, progress ProgressFunc, log *observability.Logger) scanResult {
	var res scanResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxOutputLine)
	defer func() {
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Msg("Converter output not parsed to the end")
		}
		_, _ = io.Copy(io.Discard, r)
	}()
	for scanner.Scan() {
		line := scanner.Text()
		if percent, ok := ParseProgress(line); ok {
			if progress != nil {
				progress(percent)
			}
			continue
		}
		if reason, ok := ParseError(line); ok && res.reason == "" {
			res.reason = reason
		}
	}
	return res
}

// ParseProgress extracts the percent from a PROGRESS:<n> line.
func ParseProgress(line string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "PROGRESS:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseError extracts the reason from an ERROR: <reason> line.
func ParseError(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "ERROR:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
