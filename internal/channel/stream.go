package channel

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// stdinWriter wraps a pipe writer with mutex protection so disposal can
// close it exactly once while the drain goroutine may still be writing.
type stdinWriter struct {
	mu     sync.Mutex
	writer *os.File
	closed bool
}

func (sw *stdinWriter) Write(data []byte) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return fmt.Errorf("stdin pipe closed")
	}
	_, err := sw.writer.Write(data)
	return err
}

func (sw *stdinWriter) Close() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if !sw.closed {
		sw.writer.Close()
		sw.closed = true
	}
}

// readPTY pumps raw chunks from the PTY master until the process side
// closes. Chunked reads, not line scanning: interactive programs emit
// prompts and repaints without trailing newlines.
func (c *Channel) readPTY() {
	buf := make([]byte, 32*1024)
	for {
		n, err := c.ptyFile.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.emitOutput(string(data))
		}
		if err != nil {
			// EIO is the normal end on Linux once the child exits.
			break
		}
	}
	c.markOutputClosed()
}

// scanPipes merges the two pipe streams into the channel's single output
// stream, line by line, and marks the output closed once both drain.
func (c *Channel) scanPipes(stdout, stderr io.Reader) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.scanPipe(stdout)
	}()
	go func() {
		defer wg.Done()
		c.scanPipe(stderr)
	}()
	wg.Wait()
	c.markOutputClosed()
}

func (c *Channel) scanPipe(r io.Reader) {
	scanner := bufio.NewScanner(r)
	// Large buffer for build tools and watchers that emit long lines
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		// The scanner strips the line ending; put it back so consumers
		// see line-framed chunks, not lines run together.
		c.emitOutput(scanner.Text() + "\n")
	}
	if err := scanner.Err(); err != nil {
		c.log.Debug("output scanner ended", "error", err)
	}
}
