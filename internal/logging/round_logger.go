package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"llm_compare/internal/models"
	"llm_compare/internal/utils"
)

// ErrLoggerClosed is returned when writing to a logger after Shutdown
var ErrLoggerClosed = errors.New("round logger is closed")

// DefaultRoundLogTemplate is the file template used when none is configured
const DefaultRoundLogTemplate = "./logs/rounds-%s.jsonl"

// RoundLogger implements asynchronous, buffered JSON-lines logging of round
// records with size-based rotation and periodic flush.
type RoundLogger struct {
	fileTemplate  string        // template for log file name e.g. "/var/log/llm-compare/rounds-%s.jsonl"
	maxSize       int64         // maximum size in bytes before rotation
	maxFiles      int           // maximum number of rotated files to keep
	flushInterval time.Duration // flush the buffer every flushInterval if not empty

	mu          sync.Mutex
	currentFile string // current active file name (populated from fileTemplate)
	file        *os.File
	writer      *bufio.Writer
	currentSize int64
	sequence    int

	logCh  chan *models.RoundRecord
	doneCh chan struct{}
	wg     sync.WaitGroup
	closed bool

	logger *utils.Logger
}

// RoundLoggerConfig configures a RoundLogger
type RoundLoggerConfig struct {
	FileTemplate  string
	MaxSize       int64
	MaxFiles      int
	BufferSize    int
	FlushInterval time.Duration
}

// DefaultRoundLoggerConfig returns the defaults: 10MB files, 10 kept
func DefaultRoundLoggerConfig() RoundLoggerConfig {
	return RoundLoggerConfig{
		FileTemplate:  DefaultRoundLogTemplate,
		MaxSize:       10 * 1024 * 1024,
		MaxFiles:      10,
		BufferSize:    1000,
		FlushInterval: time.Second,
	}
}

// NewRoundLogger opens the first log file and starts the writer goroutine
func NewRoundLogger(cfg RoundLoggerConfig) (*RoundLogger, error) {
	defaults := DefaultRoundLoggerConfig()
	if cfg.FileTemplate == "" {
		cfg.FileTemplate = defaults.FileTemplate
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaults.MaxSize
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaults.MaxFiles
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}

	logger := &RoundLogger{
		fileTemplate:  cfg.FileTemplate,
		maxSize:       cfg.MaxSize,
		maxFiles:      cfg.MaxFiles,
		flushInterval: cfg.FlushInterval,
		logCh:         make(chan *models.RoundRecord, cfg.BufferSize),
		doneCh:        make(chan struct{}),
		logger:        utils.NewLogger("round-logger"),
	}

	if err := logger.openFile(); err != nil {
		return nil, err
	}

	logger.wg.Add(1)
	go logger.run()

	return logger, nil
}

// newFileName applies the current timestamp and a sequence number to the template,
// so files rotated within the same second stay distinct.
func (logger *RoundLogger) newFileName() string {
	logger.sequence++
	stamp := fmt.Sprintf("%s-%04d", time.Now().Format("20060102150405"), logger.sequence)
	return fmt.Sprintf(logger.fileTemplate, stamp)
}

// openFile creates the next log file and its directory. Callers hold mu or own the logger.
func (logger *RoundLogger) openFile() error {
	logger.currentFile = logger.newFileName()
	dir := filepath.Dir(logger.currentFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(logger.currentFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", logger.currentFile, err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	logger.currentSize = fi.Size()
	logger.file = file
	logger.writer = bufio.NewWriter(file)
	return nil
}

// rotateIfNeeded rotates when adding n bytes would exceed the max file size.
// An empty file is never rotated, so a single oversized line still gets written.
func (logger *RoundLogger) rotateIfNeeded(n int) (bool, error) {
	if logger.currentSize == 0 || logger.currentSize+int64(n) <= logger.maxSize {
		return false, nil
	}

	if err := logger.writer.Flush(); err != nil {
		return false, err
	}
	if err := logger.file.Close(); err != nil {
		return false, err
	}
	return true, logger.openFile()
}

// cleanupOldFiles removes the oldest rotated files if more than maxFiles exist.
func (logger *RoundLogger) cleanupOldFiles() error {
	pattern := fmt.Sprintf(logger.fileTemplate, "*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	// Names embed a timestamp and sequence, so lexical order is creation order
	sort.Strings(matches)

	excess := len(matches) - logger.maxFiles
	for i := 0; i < excess; i++ {
		if matches[i] == logger.currentFile {
			continue
		}
		_ = os.Remove(matches[i])
	}
	return nil
}

// run listens for records and writes them to disk, flushing on a ticker.
func (logger *RoundLogger) run() {
	defer logger.wg.Done()
	ticker := time.NewTicker(logger.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case record := <-logger.logCh:
			logger.writeRecord(record)
		case <-ticker.C:
			logger.mu.Lock()
			_ = logger.writer.Flush()
			logger.mu.Unlock()
		case <-logger.doneCh:
			// Drain remaining records
			for {
				select {
				case record := <-logger.logCh:
					logger.writeRecord(record)
				default:
					logger.mu.Lock()
					_ = logger.writer.Flush()
					_ = logger.file.Close()
					logger.mu.Unlock()
					return
				}
			}
		}
	}
}

// writeRecord serializes a record as one JSON line, rotating if needed.
func (logger *RoundLogger) writeRecord(record *models.RoundRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		logger.logger.Error("Failed to encode round record", "error", err)
		return
	}
	data = append(data, '\n')

	logger.mu.Lock()
	defer logger.mu.Unlock()

	rotated, err := logger.rotateIfNeeded(len(data))
	if err != nil {
		logger.logger.Error("Failed to rotate round log", "file", logger.currentFile, "error", err)
		return
	}
	if rotated {
		_ = logger.cleanupOldFiles()
	}

	n, err := logger.writer.Write(data)
	logger.currentSize += int64(n)
	if err != nil {
		logger.logger.Error("Failed to write round record", "error", err)
	}
}

// Log queues a record. If the buffer is full the record is dropped.
func (logger *RoundLogger) Log(record *models.RoundRecord) bool {
	logger.mu.Lock()
	closed := logger.closed
	logger.mu.Unlock()
	if closed {
		return false
	}

	select {
	case logger.logCh <- record:
		return true
	default:
		logger.logger.Warn("Round log buffer full, dropping record", "round_id", record.RoundID)
		return false
	}
}

// WriteBatch queues every record, waiting for buffer space until ctx is done
func (logger *RoundLogger) WriteBatch(ctx context.Context, records []*models.RoundRecord) error {
	for _, record := range records {
		logger.mu.Lock()
		closed := logger.closed
		logger.mu.Unlock()
		if closed {
			return ErrLoggerClosed
		}

		select {
		case logger.logCh <- record:
		case <-logger.doneCh:
			return ErrLoggerClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// CurrentFile returns the path of the active log file
func (logger *RoundLogger) CurrentFile() string {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	return logger.currentFile
}

// Shutdown flushes buffered records and closes the file.
// Call it from the application's graceful shutdown handler.
func (logger *RoundLogger) Shutdown() {
	logger.mu.Lock()
	if logger.closed {
		logger.mu.Unlock()
		return
	}
	logger.closed = true
	logger.mu.Unlock()

	close(logger.doneCh)
	logger.wg.Wait()
}
