package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const defaultLogFile = "./cronwork.log"

type Config struct {
	Level   string
	Console bool
	JSON    bool // console sink writes raw JSON lines instead of the pretty writer
	File    FileConfig

	// Out receives console output. Nil means os.Stdout.
	Out io.Writer
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the sinks and swaps them on Apply. Loggers handed out by the
// Service pick up the new sinks immediately.
type Service struct {
	mu       sync.Mutex
	cfg      Config
	file     *os.File
	filePath string

	root atomic.Pointer[zerolog.Logger]
}

// New creates the logging service, applies cfg and returns the root Logger.
func New(cfg Config) (*Service, Logger) {
	initGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Close releases the file sink. Later writes fall back to the console.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.file
	s.file, s.filePath = nil, ""
	if f == nil {
		return nil
	}
	zl := s.build(s.cfg, nil)
	s.root.Store(&zl)
	return f.Close()
}

// Apply swaps outputs and level. The log file is kept open when its path is
// unchanged. Safe for concurrent use.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg

	want := ""
	if cfg.File.Enabled {
		want = strings.TrimSpace(cfg.File.Path)
		if want == "" {
			want = defaultLogFile
		}
	}
	if s.file != nil && s.filePath != want {
		_ = s.file.Close()
		s.file, s.filePath = nil, ""
	}
	if want != "" && s.file == nil {
		f, err := os.OpenFile(want, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: open log file %q: %v\n", want, err)
		} else {
			s.file, s.filePath = f, want
		}
	}

	var fileSink io.Writer
	if s.file != nil {
		fileSink = zerolog.SyncWriter(s.file)
	}
	zl := s.build(cfg, fileSink)
	s.root.Store(&zl)
}

// build assembles the root logger. With no sink at all it falls back to the
// console so nothing is silently lost.
func (s *Service) build(cfg Config, fileSink io.Writer) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	writers := make([]io.Writer, 0, 2)
	if cfg.Console {
		if cfg.JSON {
			writers = append(writers, out)
		} else {
			writers = append(writers, newConsoleWriter(out))
		}
	}
	if fileSink != nil {
		writers = append(writers, fileSink)
	}
	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(out))
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
}
