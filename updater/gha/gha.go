// Package gha emits GitHub Actions workflow commands
// and writes the runner-provided job summary and step
// output files. Regular diagnostics stay on slog; this
// package covers only the runner-visible surface.
package gha

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Console issues workflow commands to a writer,
// normally the process stdout where the runner parses
// them.
type Console struct {
	out io.Writer
}

// New returns a Console writing to stdout.
func New() *Console {
	return &Console{out: os.Stdout}
}

// NewWithWriter returns a Console writing to out.
func NewWithWriter(out io.Writer) *Console {
	return &Console{out: out}
}

// Echo prints a plain line to the job log.
func (c *Console) Echo(msg string) {
	fmt.Fprintln(c.out, msg)
}

// Notice emits a ::notice annotation.
func (c *Console) Notice(msg string) {
	c.command("notice", msg)
}

// Warning emits a ::warning annotation.
func (c *Console) Warning(msg string) {
	c.command("warning", msg)
}

// Error emits an ::error annotation.
func (c *Console) Error(msg string) {
	c.command("error", msg)
}

// Group opens a collapsible log group and returns a
// function closing it.
func (c *Console) Group(title string) func() {
	c.command("group", title)

	return func() {
		fmt.Fprintln(c.out, "::endgroup::")
	}
}

// command writes a single workflow command line with
// its data escaped per the runner protocol.
func (c *Console) command(name, data string) {
	fmt.Fprintf(
		c.out, "::%s::%s\n",
		name, escapeData(data),
	)
}

// escapeData escapes command data so multi-line
// messages survive the one-line command format.
func escapeData(data string) string {
	r := strings.NewReplacer(
		"%", "%25",
		"\r", "%0D",
		"\n", "%0A",
	)

	return r.Replace(data)
}

// AppendSummary appends markdown to the job summary
// file. A missing path (running outside a runner) is a
// no-op.
func AppendSummary(path, markdown string) error {
	const errCtx = "appending job summary"

	if path == "" {
		return nil
	}

	if err := appendLine(
		path, markdown+"\n",
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// SetOutput appends a name=value pair to the step
// output file. A missing path is a no-op. Values must
// be single-line.
func SetOutput(path, name, value string) error {
	const errCtx = "setting step output"

	if path == "" {
		return nil
	}

	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf(
			"%s: value for %q is not single-line",
			errCtx, name,
		)
	}

	line := fmt.Sprintf("%s=%s\n", name, value)

	if err := appendLine(path, line); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// appendLine appends data to the file at path, creating
// it when absent.
func appendLine(path, data string) (retErr error) {
	fi, err := os.OpenFile(
		path,
		os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		0o644,
	) //nolint:gosec // runner-provided sink path
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := fi.Close(); closeErr != nil &&
			retErr == nil {
			retErr = closeErr
		}
	}()

	_, err = fi.WriteString(data)

	return err
}
