package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Reporter appends job events to a JSON log file.
type Reporter struct {
	mu      sync.Mutex
	logFile *os.File
	events  map[string][]any
}

func NewReporter(logPath string) (*Reporter, error) {
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		logFile: file,
		events:  make(map[string][]any),
	}, nil
}

func (r *Reporter) Record(category string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[category] = append(r.events[category], map[string]any{
		"timestamp": time.Now(),
		"data":      data,
	})
}

func (r *Reporter) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return nil
	}
	data, err := json.Marshal(r.events)
	if err != nil {
		return err
	}
	if _, err := r.logFile.Write(append(data, '\n')); err != nil {
		return err
	}
	r.events = make(map[string][]any)
	return nil
}

func (r *Reporter) Close() error {
	if err := r.Flush(); err != nil {
		return fmt.Errorf("failed to flush metrics: %w", err)
	}
	return r.logFile.Close()
}
