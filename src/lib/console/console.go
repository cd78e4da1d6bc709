package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	tty "github.com/mattn/go-tty"
)

// Console is the kernel's line oriented text sink. Everything the kernel
// prints, including the last line before a halt, goes through one of these.
type Console interface {
	Logf(string, ...interface{})
	Sprintf(string, ...interface{}) string
	WriteString(string)
}

// Writer is a Console over any io.Writer. When CRLF is set each newline
// goes out as "\r\n", which is what a UART on the other end of a serial
// line expects. The translation happens on the way out, in WriteString, so
// logger output and raw lines get it too. Like the rest of the kernel it
// assumes one execution context; it does no locking.
type Writer struct {
	out  io.Writer
	CRLF bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{out: w}
}

func (c *Writer) Logf(format string, values ...interface{}) {
	if format == "" {
		return
	}
	s := c.Sprintf(format, values...)
	if format[len(format)-1] != '\n' {
		s += "\n"
	}
	c.WriteString(s)
}

func (c *Writer) Sprintf(format string, values ...interface{}) string {
	return fmt.Sprintf(format, values...)
}

// WriteString writes s, translating line endings if CRLF is set. Errors
// are dropped: there is nowhere left to report a broken console to.
func (c *Writer) WriteString(s string) {
	if c.CRLF {
		s = toCRLF(s)
	}
	_, _ = io.WriteString(c.out, s)
}

// Write makes the console usable as an io.Writer (for the logger core).
func (c *Writer) Write(p []byte) (int, error) {
	c.WriteString(string(p))
	return len(p), nil
}

// toCRLF leaves existing "\r\n" pairs alone.
func toCRLF(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

// Serial is a console on a serial device, typically the pty that qemu
// connects to the guest's mini uart.
type Serial struct {
	*Writer
	io *tty.TTY
}

// OpenSerial returns nil and the error when the device can't be opened.
func OpenSerial(devTTYPath string) (*Serial, error) {
	ttyObj, err := tty.OpenDevice(devTTYPath)
	if err != nil {
		return nil, fmt.Errorf("open serial console %s: %w", devTTYPath, err)
	}
	w := NewWriter(ttyObj.Output())
	w.CRLF = true
	return &Serial{Writer: w, io: ttyObj}, nil
}

func (s *Serial) Close() error {
	return s.io.Close()
}

// Open picks a console by name: "stdout", "stderr" or a serial device path.
// The returned close func is never nil.
func Open(device string) (Console, func() error, error) {
	nop := func() error { return nil }
	switch device {
	case "", "stdout":
		return NewWriter(os.Stdout), nop, nil
	case "stderr":
		return NewWriter(os.Stderr), nop, nil
	}
	s, err := OpenSerial(device)
	if err != nil {
		return nil, nop, err
	}
	return s, s.Close, nil
}
