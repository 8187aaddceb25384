package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/model"
)

// JsonlWriter appends JSON lines to a file, creating parent directories as
// needed. A zero path disables the writer.
type JsonlWriter struct {
	path string
	mu   sync.Mutex
}

func NewJsonlWriter(path string) *JsonlWriter {
	return &JsonlWriter{path: path}
}

func (w *JsonlWriter) append(records []interface{}) error {
	if w == nil || w.path == "" || len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(w.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// PutEvents appends decoded hook events.
func (w *JsonlWriter) PutEvents(events []*model.HookEvent) error {
	records := make([]interface{}, len(events))
	for i, event := range events {
		records[i] = event
	}
	return w.append(records)
}

// PutPayouts appends payout instructions.
func (w *JsonlWriter) PutPayouts(payouts []model.PayoutInstruction) error {
	records := make([]interface{}, len(payouts))
	for i, payout := range payouts {
		records[i] = payout
	}
	return w.append(records)
}

// PutPremiums appends premium credit notifications.
func (w *JsonlWriter) PutPremiums(premiums []model.PremiumCredited) error {
	records := make([]interface{}, len(premiums))
	for i, premium := range premiums {
		records[i] = premium
	}
	return w.append(records)
}

// PutErrors appends rejected log records.
func (w *JsonlWriter) PutErrors(errs []model.DecodeError) error {
	records := make([]interface{}, len(errs))
	for i, decodeErr := range errs {
		records[i] = decodeErr
	}
	return w.append(records)
}
