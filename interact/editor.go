package interact

import (
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"golang.org/x/term"
)

// Editor reads selections from /dev/tty, so it works while stdin and stdout
// belong to the shell wrapper. The terminal is in raw mode only while a line
// is being read.
type Editor struct {
	tty *os.File
	buf []byte
	pos int // cursor byte offset into buf

	mu    sync.Mutex
	saved *term.State // non-nil while the terminal is raw
}

// NewEditor opens /dev/tty.
func NewEditor() (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}
	return &Editor{tty: tty}, nil
}

// Close closes the tty.
func (e *Editor) Close() error {
	return e.tty.Close()
}

// ReadLine shows prompt and reads one line with basic cursor editing.
// Ctrl-C, and Ctrl-D on an empty line, return ErrInterrupted.
func (e *Editor) ReadLine(prompt string) (string, error) {
	if err := e.makeRaw(); err != nil {
		return "", err
	}
	defer e.Restore()

	e.buf = e.buf[:0]
	e.pos = 0
	e.redraw(prompt)

	for {
		var b [1]byte
		if _, err := e.tty.Read(b[:]); err != nil {
			return "", err
		}

		switch b[0] {
		case 3: // Ctrl-C
			fmt.Fprint(e.tty, "\r\n")
			return "", ErrInterrupted

		case 4: // Ctrl-D
			if len(e.buf) == 0 {
				fmt.Fprint(e.tty, "\r\n")
				return "", ErrInterrupted
			}

		case 13, 10: // Enter
			fmt.Fprint(e.tty, "\r\n")
			return string(e.buf), nil

		case 127, 8: // Backspace / Ctrl-H
			if e.pos > 0 {
				size := prevRuneLen(e.buf, e.pos)
				copy(e.buf[e.pos-size:], e.buf[e.pos:])
				e.buf = e.buf[:len(e.buf)-size]
				e.pos -= size
			}

		case 1: // Ctrl-A
			e.pos = 0

		case 5: // Ctrl-E
			e.pos = len(e.buf)

		case 21: // Ctrl-U
			e.buf = e.buf[:0]
			e.pos = 0

		case 27:
			e.escape()

		default:
			if b[0] >= 32 {
				e.insert(e.readRune(b[0]))
			}
		}

		e.redraw(prompt)
	}
}

func (e *Editor) makeRaw() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	saved, err := term.MakeRaw(int(e.tty.Fd()))
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	e.saved = saved
	return nil
}

// Restore puts the terminal back in the mode it had before ReadLine. It may
// be called from a signal handler while ReadLine is blocked, and does
// nothing when no line is being read.
func (e *Editor) Restore() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saved == nil {
		return
	}
	term.Restore(int(e.tty.Fd()), e.saved)
	e.saved = nil
}

// escape handles the arrow, Home, End and Delete sequences.
func (e *Editor) escape() {
	var seq [3]byte
	if n, _ := e.tty.Read(seq[:1]); n == 0 || seq[0] != '[' {
		return
	}
	if n, _ := e.tty.Read(seq[1:2]); n == 0 {
		return
	}
	switch seq[1] {
	case 'D': // Left
		if e.pos > 0 {
			e.pos -= prevRuneLen(e.buf, e.pos)
		}
	case 'C': // Right
		if e.pos < len(e.buf) {
			_, size := utf8.DecodeRune(e.buf[e.pos:])
			e.pos += size
		}
	case 'H':
		e.pos = 0
	case 'F':
		e.pos = len(e.buf)
	case '3': // Delete: \x1b[3~
		e.tty.Read(seq[2:3])
		if e.pos < len(e.buf) {
			_, size := utf8.DecodeRune(e.buf[e.pos:])
			copy(e.buf[e.pos:], e.buf[e.pos+size:])
			e.buf = e.buf[:len(e.buf)-size]
		}
	}
}

// readRune completes a multi-byte UTF-8 sequence that starts with lead.
func (e *Editor) readRune(lead byte) []byte {
	ch := []byte{lead}
	if n := runeLen(lead) - 1; n > 0 {
		rest := make([]byte, n)
		e.tty.Read(rest)
		ch = append(ch, rest...)
	}
	return ch
}

func (e *Editor) insert(ch []byte) {
	e.buf = append(e.buf, make([]byte, len(ch))...)
	copy(e.buf[e.pos+len(ch):], e.buf[e.pos:len(e.buf)-len(ch)])
	copy(e.buf[e.pos:], ch)
	e.pos += len(ch)
}

// redraw clears the line and redraws prompt and buffer with the cursor in place.
func (e *Editor) redraw(prompt string) {
	fmt.Fprintf(e.tty, "\r\x1b[K%s%s", prompt, e.buf)
	if tail := utf8.RuneCount(e.buf[e.pos:]); tail > 0 {
		fmt.Fprintf(e.tty, "\x1b[%dD", tail)
	}
}

// prevRuneLen returns the byte length of the rune ending at pos.
func prevRuneLen(buf []byte, pos int) int {
	if pos <= 0 {
		return 0
	}
	_, size := utf8.DecodeLastRune(buf[:pos])
	return size
}

// runeLen returns the expected byte length of a UTF-8 sequence from its
// leading byte.
func runeLen(lead byte) int {
	switch {
	case lead < 0xC0:
		return 1
	case lead < 0xE0:
		return 2
	case lead < 0xF0:
		return 3
	}
	return 4
}
