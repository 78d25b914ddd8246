package interact

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LineReader reads selections from a plain stream, such as a pipe.
type LineReader struct {
	r   *bufio.Reader
	out io.Writer
}

// NewLineReader reads lines from r and writes prompts to out.
func NewLineReader(r io.Reader, out io.Writer) *LineReader {
	return &LineReader{r: bufio.NewReader(r), out: out}
}

// ReadLine shows prompt and returns the next line without its terminator.
// End of input before a newline is reported as ErrInterrupted.
func (l *LineReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(l.out, prompt)
	line, err := l.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(l.out)
			return "", ErrInterrupted
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
