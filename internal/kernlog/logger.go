// Package kernlog implements the kernel's diagnostic channel.
//
// spec.md §7 requires precondition violations, queue overflow, and a
// returning Run() to be reported through a "write-only diagnostic
// interface" rather than through error returns. This package is that
// interface: a structured logrus logger, rotated to disk via lumberjack
// when configured with a log file, with a per-component sub-logger for
// each kernel concern (scheduler, semaphore, queue, ...).
package kernlog

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ConfigUseJSONDefault          = false
	ConfigLevelDefault            = "info"
	ConfigDisableSrcFileDefault   = false
	ConfigLogFileDefault          = "" // i.e. stderr
	ConfigLogFileMaxSizeMBDefault = 10
	ConfigLogFileMaxBackupDefault = 1

	DefaultLevel    = logrus.InfoLevel
	TimestampFormat = time.RFC3339
	// Extra field added for component sub loggers:
	ComponentFieldName = "comp"
)

// CollectableLogger satisfies testutils.CollectableLog so tests can swap its
// output and level without touching the kernel under test.
type CollectableLogger struct {
	logrus.Logger
	IsEnabledForDebug bool
}

func (log *CollectableLogger) GetOutput() io.Writer { return log.Out }

func (log *CollectableLogger) GetLevel() any { return log.Logger.GetLevel() }

func (log *CollectableLogger) SetLevel(level any) {
	if level, ok := level.(logrus.Level); ok {
		log.Logger.SetLevel(level)
		log.IsEnabledForDebug = log.IsLevelEnabled(logrus.DebugLevel)
	}
}

// Diagnostics is the interface the kernel depends on; it never returns an
// error, matching spec.md §7 ("kernel primitives never throw or return
// error codes except q_post").
type Diagnostics interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// compLogger wraps a logrus.Entry to satisfy Diagnostics.
type compLogger struct {
	entry *logrus.Entry
}

func (c *compLogger) Warnf(format string, args ...any)  { c.entry.Warnf(format, args...) }
func (c *compLogger) Errorf(format string, args ...any) { c.entry.Errorf(format, args...) }
func (c *compLogger) Fatalf(format string, args ...any) { c.entry.Fatalf(format, args...) }

type Config struct {
	UseJSON             bool   `yaml:"use_json"`
	Level               string `yaml:"level"`
	DisableSrcFile      bool   `yaml:"disable_src_file"`
	LogFile             string `yaml:"log_file"`
	LogFileMaxSizeMB    int    `yaml:"log_file_max_size_mb"`
	LogFileMaxBackupNum int    `yaml:"log_file_max_backup_num"`
}

func DefaultConfig() *Config {
	return &Config{
		UseJSON:             ConfigUseJSONDefault,
		Level:               ConfigLevelDefault,
		DisableSrcFile:      ConfigDisableSrcFileDefault,
		LogFile:             ConfigLogFileDefault,
		LogFileMaxSizeMB:    ConfigLogFileMaxSizeMBDefault,
		LogFileMaxBackupNum: ConfigLogFileMaxBackupDefault,
	}
}

// sourcePathCache shortens a reported source file to a path relative to
// some caller-declared root, and memoizes that shortening per program
// counter so formatting a log line never redoes the string work for a
// call site it has already seen. "Which root prefix applies" and "what
// did we already compute for this PC" answer the same question — how
// should this frame's file read? — so one struct and one lock own both,
// rather than two collaborating cache types.
type sourcePathCache struct {
	mu        sync.Mutex
	prefixes  []string
	tailDirs  int
	shortened map[uintptr]string
}

func newSourcePathCache(tailDirs int) *sourcePathCache {
	return &sourcePathCache{tailDirs: tailDirs, shortened: make(map[uintptr]string)}
}

// addPrefix registers a root directory (trailing slash included) whose
// longest occurrence at the start of a file path is stripped before
// logging. Distinct callers of this package may each register their own
// root; the longest match among all of them wins.
func (c *sourcePathCache) addPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.prefixes {
		if p == prefix {
			return
		}
	}
	c.prefixes = append(c.prefixes, prefix)
}

// shorten strips the longest registered prefix matching filePath, or
// else keeps only the last tailDirs+1 path components.
func (c *sourcePathCache) shorten(filePath string) string {
	best := ""
	for _, p := range c.prefixes {
		if len(p) > len(best) && strings.HasPrefix(filePath, p) {
			best = p
		}
	}
	if best != "" {
		return filePath[len(best):]
	}
	comps := strings.Split(filePath, "/")
	keep := c.tailDirs + 1
	if keep < 1 {
		keep = 1
	}
	if keep < len(comps) {
		filePath = path.Join(comps[len(comps)-keep:]...)
	}
	return filePath
}

// prettyfy is a logrus CallerPrettyfier: kernel log lines identify a
// call site by file:line, never by Go symbol name, and the formatted
// file:line is cached per PC.
func (c *sourcePathCache) prettyfy(f *runtime.Frame) (function string, file string) {
	c.mu.Lock()
	if cached, ok := c.shortened[f.PC]; ok {
		c.mu.Unlock()
		return "", cached
	}
	c.mu.Unlock()

	file = fmt.Sprintf("%s:%d", c.shorten(f.File), f.Line)

	c.mu.Lock()
	c.shortened[f.PC] = file
	c.mu.Unlock()
	return "", file
}

var pathCache = newSourcePathCache(1)

// AddCallerSrcPathPrefix records the root dir of a caller's module, `upNDirs`
// directories above the caller's own source file, so that log lines report
// paths relative to it instead of an absolute build path.
func AddCallerSrcPathPrefix(upNDirs int, skip int) error {
	skip += 1 // skip this function
	_, file, _, ok := runtime.Caller(skip)
	if !ok {
		return fmt.Errorf("cannot determine source root: runtime.Caller(%d) failed", skip)
	}
	prefix := path.Dir(file)
	for i := 0; i < upNDirs; i++ {
		prefix = path.Dir(prefix)
	}
	if prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	pathCache.addPrefix(prefix)
	return nil
}

var fieldKeySortOrder = map[string]int{
	logrus.FieldKeyTime: -5,
	logrus.FieldKeyLevel: -4,
	ComponentFieldName:   -3,
	logrus.FieldKeyFile:  -2,
	logrus.FieldKeyFunc:  -1,
	logrus.FieldKeyMsg:   1,
}

// sortFieldKeys orders a log line's fields as time, level, component,
// file, func, then every remaining field alphabetically, then msg last.
func sortFieldKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		ki, kj := keys[i], keys[j]
		oi, oj := fieldKeySortOrder[ki], fieldKeySortOrder[kj]
		if oi != 0 || oj != 0 {
			return oi < oj
		}
		return ki < kj
	})
}

var textFormatter = &logrus.TextFormatter{
	DisableColors:    true,
	FullTimestamp:    true,
	TimestampFormat:  TimestampFormat,
	CallerPrettyfier: pathCache.prettyfy,
	SortingFunc:      sortFieldKeys,
}

var jsonFormatter = &logrus.JSONFormatter{
	TimestampFormat:  TimestampFormat,
	CallerPrettyfier: pathCache.prettyfy,
}

var RootLogger = &CollectableLogger{
	Logger: logrus.Logger{
		Out:          os.Stderr,
		Formatter:    textFormatter,
		Level:        DefaultLevel,
		ReportCaller: true,
	},
}

func GetRootLogger() *CollectableLogger { return RootLogger }

func init() {
	AddCallerSrcPathPrefix(2, 0)
}

// Set applies cfg (defaults if nil) to the root logger.
func Set(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		RootLogger.SetLevel(level)
	}

	if cfg.UseJSON {
		RootLogger.SetFormatter(jsonFormatter)
	} else {
		RootLogger.SetFormatter(textFormatter)
	}

	RootLogger.SetReportCaller(!cfg.DisableSrcFile)

	switch cfg.LogFile {
	case "stderr":
		RootLogger.SetOutput(os.Stderr)
	case "stdout":
		RootLogger.SetOutput(os.Stdout)
	case "":
	default:
		logDir := path.Dir(cfg.LogFile)
		if _, err := os.Stat(logDir); err != nil {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				return err
			}
		}
		_, err := os.Stat(cfg.LogFile)
		forceRotate := err == nil
		lf := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogFileMaxSizeMB,
			MaxBackups: cfg.LogFileMaxBackupNum,
		}
		if forceRotate {
			if err := lf.Rotate(); err != nil {
				return err
			}
		}
		RootLogger.SetOutput(lf)
	}

	return nil
}

// NewComponent returns a Diagnostics sink tagged with compName, e.g.
// "scheduler", "semaphore", "queue".
func NewComponent(compName string) Diagnostics {
	return &compLogger{entry: RootLogger.WithField(ComponentFieldName, compName)}
}
