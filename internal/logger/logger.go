package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger provides leveled logging (info/warning/error) to stdout/stderr and,
// when a directory is given, to one file per level.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      []*os.File
	mu         sync.Mutex
}

// New creates a Logger. An empty logDir logs to the console only.
func New(logDir string) (*Logger, error) {
	infoWriter := io.Writer(os.Stdout)
	warningWriter := io.Writer(os.Stdout)
	errorWriter := io.Writer(os.Stderr)

	l := &Logger{}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		infoFile, err := l.openLogFile(filepath.Join(logDir, "info.log"))
		if err != nil {
			return nil, err
		}
		warningFile, err := l.openLogFile(filepath.Join(logDir, "warning.log"))
		if err != nil {
			l.Close()
			return nil, err
		}
		errorFile, err := l.openLogFile(filepath.Join(logDir, "error.log"))
		if err != nil {
			l.Close()
			return nil, err
		}

		infoWriter = io.MultiWriter(os.Stdout, infoFile)
		warningWriter = io.MultiWriter(os.Stdout, warningFile)
		errorWriter = io.MultiWriter(os.Stderr, errorFile)
	}

	l.setup(infoWriter, warningWriter, errorWriter)
	return l, nil
}

// NewWriter sends every level to w. Used by tests.
func NewWriter(w io.Writer) *Logger {
	l := &Logger{}
	l.setup(w, w, w)
	return l
}

func (l *Logger) setup(info, warning, errw io.Writer) {
	l.infoLog = log.New(info, "INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warning, "WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errw, "ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(l.infoLog, format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.output(l.warningLog, format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(l.errorLog, format, v...)
}

func (l *Logger) output(target *log.Logger, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// depth 3: output -> Info/Warning/Error -> caller
	_ = target.Output(3, fmt.Sprintf(format, v...))
}

// Close closes any open log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
