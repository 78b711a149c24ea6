package terminal

import (
	"bufio"
	"context"
	"io"
)

// ReadLines sends each line read from r on the returned channel. The channel
// is closed at end of input or when ctx is done.
func ReadLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
