package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	defaultPoll  = 250 * time.Millisecond
	maxLineBytes = 1 << 20
)

// TailOptions controls Tail.
type TailOptions struct {
	// Lines is how many trailing lines to print first. Zero prints none.
	Lines int
	// Follow keeps polling for appended lines until ctx is done.
	Follow bool
	// Poll is the follow interval. Zero uses 250ms.
	Poll time.Duration
	// Match drops lines for which it returns false. Nil keeps every line.
	Match func(line string) bool
}

// Tail emits the last opts.Lines lines of path and, with opts.Follow, every
// line appended afterwards. A missing file is treated as empty. Follow mode
// returns nil when ctx is canceled.
func Tail(ctx context.Context, path string, opts TailOptions, emit func(line string) error) error {
	if opts.Poll <= 0 {
		opts.Poll = defaultPoll
	}
	filtered := func(line string) error {
		if opts.Match != nil && !opts.Match(line) {
			return nil
		}
		return emit(line)
	}

	lines, offset, err := lastLines(path, opts.Lines, opts.Match)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := emit(line); err != nil {
			return err
		}
	}
	if !opts.Follow {
		return nil
	}

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		offset, err = readFrom(path, offset, filtered)
		if err != nil {
			return err
		}
	}
}

// lastLines returns up to limit matching lines from the end of path plus the
// offset just past the last complete line.
func lastLines(path string, limit int, match func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 64<<10)
	var (
		ring   []string
		next   int
		offset int64
	)
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	for {
		line, n, err := readLine(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += n
		if limit <= 0 || (match != nil && !match(line)) {
			continue
		}
		if len(ring) < limit {
			ring = append(ring, line)
			continue
		}
		ring[next] = line
		next = (next + 1) % limit
	}

	ordered := make([]string, 0, len(ring))
	ordered = append(ordered, ring[next:]...)
	ordered = append(ordered, ring[:next]...)
	return ordered, offset, nil
}

// readFrom emits complete lines after offset and returns the new offset. A
// file shorter than offset was truncated or rotated and is read from zero.
func readFrom(path string, offset int64, emit func(string) error) (int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64<<10)
	for {
		line, n, err := readLine(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += n
		if err := emit(line); err != nil {
			return offset, err
		}
	}
}

// readLine returns the next newline-terminated line and the bytes consumed.
// A trailing partial line reports io.EOF without consuming it, so a writer
// mid-line is picked up on the next poll. Lines over maxLineBytes are cut.
func readLine(reader *bufio.Reader) (string, int64, error) {
	var (
		buf   []byte
		count int64
	)
	for {
		chunk, err := reader.ReadSlice('\n')
		count += int64(len(chunk))
		if len(buf) < maxLineBytes {
			buf = append(buf, chunk...)
		}
		switch {
		case err == nil:
			return strings.TrimRight(string(buf), "\r\n"), count, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return "", 0, err
		}
	}
}
