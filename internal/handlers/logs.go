package handlers

import (
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// DefaultLogLines is how many log lines a LogBuffer keeps
const DefaultLogLines = 1000

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	max   int
	mu    sync.Mutex
}

// NewLogBuffer creates a buffer keeping the last size lines
func NewLogBuffer(size int) *LogBuffer {
	if size < 1 {
		size = DefaultLogLines
	}
	return &LogBuffer{lines: make([]string, 0, size), max: size}
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, strings.TrimRight(string(p), "\n"))
	if len(lb.lines) > lb.max {
		lb.lines = lb.lines[len(lb.lines)-lb.max:]
	}
	return len(p), nil
}

// GetLogs returns a copy of the buffered lines, oldest first
func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// Handle serves the buffered lines
func (lb *LogBuffer) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"logs": lb.GetLogs(),
	})
}
