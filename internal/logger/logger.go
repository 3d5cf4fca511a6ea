package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rivo/tview"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Types int

const (
	Info Types = iota
	Error
	Warn
	Fatal
)

type Logger struct {
	view *tview.TextView
	tag  string
	dev  bool
	sink *zap.SugaredLogger
}

type manager struct {
	mu      sync.RWMutex
	view    *tview.TextView
	dev     bool
	logFile *os.File
	sink    *zap.SugaredLogger
}

var (
	logManager = &manager{}
	once       sync.Once
)

// InitLogger configures the shared log destinations. Loggers created before
// the call stay silent.
func InitLogger(dev bool, logPath string, view *tview.TextView) error {
	var initErr error
	once.Do(func() {
		logManager.mu.Lock()
		defer logManager.mu.Unlock()

		logManager.view = view
		logManager.dev = dev

		if logPath == "" {
			return
		}
		if err := os.MkdirAll(logPath, 0700); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
		timestamp := time.Now().Format("20060102_150405")
		fileName := fmt.Sprintf("nebula_log_%s.log", timestamp)
		file, err := os.OpenFile(filepath.Join(logPath, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			initErr = fmt.Errorf("failed to open log file: %w", err)
			return
		}
		logManager.logFile = file
		logManager.sink = newFileSink(file, dev)
	})
	return initErr
}

func newFileSink(file *os.File, dev bool) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zapcore.InfoLevel
	if dev {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(file), level)
	return zap.New(core).Sugar()
}

func NewLogger(tag string) *Logger {
	logManager.mu.RLock()
	defer logManager.mu.RUnlock()

	l := &Logger{
		view: logManager.view,
		tag:  tag,
		dev:  logManager.dev,
	}
	if logManager.sink != nil {
		l.sink = logManager.sink.Named(tag)
	}
	return l
}

func (l *Logger) log(logTypes Types, v ...interface{}) {
	message := fmt.Sprint(v...)
	if l.dev && l.view != nil {
		var format string
		switch logTypes {
		case Info:
			format = "[green]DEBUG (%s): %s[-]\n"
		case Error, Fatal:
			format = "[red]DEBUG (%s): %s[-]\n"
		case Warn:
			format = "[yellow]DEBUG (%s): %s[-]\n"
		}
		fmt.Fprintf(l.view, format, l.tag, tview.Escape(message))
	}

	if l.sink == nil {
		return
	}
	switch logTypes {
	case Info:
		l.sink.Info(message)
	case Warn:
		l.sink.Warn(message)
	case Error, Fatal:
		l.sink.Error(message)
	}
}

func (l *Logger) Info(v ...interface{}) {
	l.log(Info, v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.log(Error, v...)
}

func (l *Logger) Warn(v ...interface{}) {
	l.log(Warn, v...)
}

func (l *Logger) Fatal(v ...interface{}) {
	l.log(Fatal, v...)
	Close()
	os.Exit(1)
}

// Close flushes the file sink and closes the log file.
func Close() {
	logManager.mu.Lock()
	defer logManager.mu.Unlock()

	if logManager.sink != nil {
		_ = logManager.sink.Sync()
	}
	if logManager.logFile != nil {
		logManager.logFile.Close()
		logManager.logFile = nil
	}
}

func (t Types) String() string {
	switch t {
	case Info:
		return "INFO"
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
