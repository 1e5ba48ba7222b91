package shell

import (
	"errors"
	"io"
)

// ErrLineTooLong is returned for lines longer than the reader's limit. The
// rest of the line has been discarded.
var ErrLineTooLong = errors.New("Input is too long.")

// LineReader reads bounded lines.
//
// It reads one byte at a time so nothing past the newline is consumed.
// Children share the interpreter's stdin and must see the input that
// follows their command line.
type LineReader struct {
	r   io.Reader
	max int
}

// NewLineReader creates a reader returning lines of at most max bytes,
// excluding the newline.
func NewLineReader(r io.Reader, max int) *LineReader {
	return &LineReader{r: r, max: max}
}

// ReadLine returns the next line without its newline. A final line without a
// newline is returned as is; io.EOF is only returned once no input is left.
func (lr *LineReader) ReadLine() (string, error) {
	var (
		line    []byte
		tooLong bool
		buf     [1]byte
		sawAny  bool
	)

	for {
		n, err := lr.r.Read(buf[:])
		if n == 1 {
			sawAny = true
			if buf[0] == '\n' {
				break
			}
			if len(line) < lr.max {
				line = append(line, buf[0])
			} else {
				tooLong = true
			}
			continue
		}

		if err == io.EOF {
			if !sawAny {
				return "", io.EOF
			}
			break
		}
		if err != nil {
			return "", err
		}
	}

	if tooLong {
		return "", ErrLineTooLong
	}
	return string(line), nil
}
