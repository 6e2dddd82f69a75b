// Package termsurface presents visualizer frames as ANSI bar charts on a
// terminal.
package termsurface

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/A-ESxARG/receiver/internal/visual"
)

// Surface draws onto a terminal. Bounds reports zero when the descriptor is
// not a terminal, which visual.New rejects.
type Surface struct {
	mu     sync.Mutex
	out    io.Writer
	fd     int
	maxRow int
}

// New draws to out sized by the terminal behind fd. maxRows caps the chart
// height; non-positive uses the full terminal.
func New(out io.Writer, fd int, maxRows int) *Surface {
	return &Surface{out: out, fd: fd, maxRow: maxRows}
}

// Stdout is a surface on the process's standard output.
func Stdout(maxRows int) *Surface {
	return New(os.Stdout, int(os.Stdout.Fd()), maxRows)
}

func (s *Surface) Bounds() (int, int) {
	if !term.IsTerminal(s.fd) {
		return 0, 0
	}
	w, h, err := term.GetSize(s.fd)
	if err != nil {
		return 0, 0
	}
	// Leave a row for the status line.
	h--
	if s.maxRow > 0 && h > s.maxRow {
		h = s.maxRow
	}
	return w, h
}

func (s *Surface) Present(f visual.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Draw(s.out, f)
}

// Draw writes one frame: cursor home, the bar rows top down, then a status
// line with the scalars.
func Draw(out io.Writer, f visual.Frame) error {
	w := bufio.NewWriter(out)
	w.WriteString("\x1b[H")
	rows := f.Height
	for r := rows; r >= 1; r-- {
		threshold := (float64(r) - 0.5) / float64(rows)
		for _, c := range f.Columns {
			if c >= threshold {
				w.WriteString("█")
			} else {
				w.WriteByte(' ')
			}
		}
		w.WriteString("\x1b[K\r\n")
	}
	fmt.Fprintf(w, "seq=%d entropy=%.3f refinement=%.3f smear=%.3f\x1b[K", f.Seq, f.Entropy, f.Refinement, f.Smear)
	return w.Flush()
}
