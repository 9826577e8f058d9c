package logger

import (
	"fmt"
	"io"
	"sync/atomic"

	echolog "github.com/labstack/gommon/log"
)

// EchoLoggerAdapter adapts Logger to the echo.Logger interface so the HTTP
// framework logs through the module logger.
//
//	e := echo.New()
//	e.Logger = logger.NewEchoLoggerAdapter(central.Module("http"))
type EchoLoggerAdapter struct {
	logger Logger
	level  atomic.Uint32
}

// NewEchoLoggerAdapter creates a new Echo logger adapter
func NewEchoLoggerAdapter(l Logger) *EchoLoggerAdapter {
	if l == nil {
		l = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	a := &EchoLoggerAdapter{logger: l}
	a.level.Store(uint32(echolog.INFO))
	return a
}

// Output returns io.Discard; output is managed by the module logger
func (a *EchoLoggerAdapter) Output() io.Writer { return io.Discard }

// SetOutput is a no-op
func (a *EchoLoggerAdapter) SetOutput(_ io.Writer) {}

// Prefix returns an empty prefix; module scoping provides context
func (a *EchoLoggerAdapter) Prefix() string { return "" }

// SetPrefix is a no-op
func (a *EchoLoggerAdapter) SetPrefix(_ string) {}

// Level returns the minimum echo level forwarded
func (a *EchoLoggerAdapter) Level() echolog.Lvl {
	return echolog.Lvl(a.level.Load())
}

// SetLevel sets the minimum echo level forwarded to the module logger
func (a *EchoLoggerAdapter) SetLevel(l echolog.Lvl) {
	a.level.Store(uint32(l))
}

// SetHeader is a no-op
func (a *EchoLoggerAdapter) SetHeader(_ string) {}

func (a *EchoLoggerAdapter) enabled(l echolog.Lvl) bool {
	return l >= a.Level()
}

func (a *EchoLoggerAdapter) Print(i ...any) { a.Info(i...) }

func (a *EchoLoggerAdapter) Printf(format string, args ...any) { a.Infof(format, args...) }

func (a *EchoLoggerAdapter) Printj(j echolog.JSON) { a.Infoj(j) }

func (a *EchoLoggerAdapter) Debug(i ...any) {
	if a.enabled(echolog.DEBUG) {
		a.logger.Debug(fmt.Sprint(i...))
	}
}

func (a *EchoLoggerAdapter) Debugf(format string, args ...any) {
	if a.enabled(echolog.DEBUG) {
		a.logger.Debug(fmt.Sprintf(format, args...))
	}
}

func (a *EchoLoggerAdapter) Debugj(j echolog.JSON) {
	if a.enabled(echolog.DEBUG) {
		a.logger.Debug("echo", Any("data", j))
	}
}

func (a *EchoLoggerAdapter) Info(i ...any) {
	if a.enabled(echolog.INFO) {
		a.logger.Info(fmt.Sprint(i...))
	}
}

func (a *EchoLoggerAdapter) Infof(format string, args ...any) {
	if a.enabled(echolog.INFO) {
		a.logger.Info(fmt.Sprintf(format, args...))
	}
}

func (a *EchoLoggerAdapter) Infoj(j echolog.JSON) {
	if a.enabled(echolog.INFO) {
		a.logger.Info("echo", Any("data", j))
	}
}

func (a *EchoLoggerAdapter) Warn(i ...any) {
	if a.enabled(echolog.WARN) {
		a.logger.Warn(fmt.Sprint(i...))
	}
}

func (a *EchoLoggerAdapter) Warnf(format string, args ...any) {
	if a.enabled(echolog.WARN) {
		a.logger.Warn(fmt.Sprintf(format, args...))
	}
}

func (a *EchoLoggerAdapter) Warnj(j echolog.JSON) {
	if a.enabled(echolog.WARN) {
		a.logger.Warn("echo", Any("data", j))
	}
}

func (a *EchoLoggerAdapter) Error(i ...any) {
	a.logger.Error(fmt.Sprint(i...))
}

func (a *EchoLoggerAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a *EchoLoggerAdapter) Errorj(j echolog.JSON) {
	a.logger.Error("echo", Any("data", j))
}

// Fatal logs at ERROR level and panics so the server shuts down through recovery
func (a *EchoLoggerAdapter) Fatal(i ...any) {
	msg := fmt.Sprint(i...)
	a.logger.Error(msg)
	panic("echo fatal: " + msg)
}

func (a *EchoLoggerAdapter) Fatalf(format string, args ...any) {
	a.Fatal(fmt.Sprintf(format, args...))
}

func (a *EchoLoggerAdapter) Fatalj(j echolog.JSON) {
	a.Fatal(fmt.Sprint(j))
}

func (a *EchoLoggerAdapter) Panic(i ...any) {
	msg := fmt.Sprint(i...)
	a.logger.Error(msg)
	panic(msg)
}

func (a *EchoLoggerAdapter) Panicf(format string, args ...any) {
	a.Panic(fmt.Sprintf(format, args...))
}

func (a *EchoLoggerAdapter) Panicj(j echolog.JSON) {
	a.Panic(fmt.Sprint(j))
}
