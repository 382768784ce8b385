// Package logging provides categorized, structured logging for the registry
// console on top of charmbracelet/log.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Category groups related log lines.
type Category string

const (
	CatHTTP     Category = "http"
	CatDB       Category = "db"
	CatCache    Category = "cache"
	CatRegistry Category = "registry"
	CatBulk     Category = "bulk"
	CatAudit    Category = "audit"
	CatAuthz    Category = "authz"
	CatConfig   Category = "config"
)

var (
	mu      sync.RWMutex
	current = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Level: log.InfoLevel})
)

// Init replaces the default logger. format is "text", "json" or "logfmt".
func Init(level string, format string, w io.Writer) error {
	lvl := log.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return err
		}
		lvl = parsed
	}
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, Level: lvl, Prefix: "registry"}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		opts.Formatter = log.JSONFormatter
	case "logfmt":
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}

	mu.Lock()
	current = log.NewWithOptions(w, opts)
	mu.Unlock()
	return nil
}

// Logger returns the category-scoped logger, for callers that want to keep it.
func Logger(cat Category) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current.With("cat", string(cat))
}

func Debug(cat Category, msg string, kv ...any) { Logger(cat).Debug(msg, kv...) }

func Info(cat Category, msg string, kv ...any) { Logger(cat).Info(msg, kv...) }

func Warn(cat Category, msg string, kv ...any) { Logger(cat).Warn(msg, kv...) }

func Error(cat Category, msg string, kv ...any) { Logger(cat).Error(msg, kv...) }

// ErrorErr logs msg with err attached under the "err" key.
func ErrorErr(cat Category, msg string, err error, kv ...any) {
	if err != nil {
		kv = append(kv, "err", err.Error())
	} else {
		kv = append(kv, "err", "<nil>")
	}
	Logger(cat).Error(msg, kv...)
}
