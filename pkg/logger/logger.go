// RoomFleet - autonomous agents for shared chat rooms
// License: MIT
//
// Copyright (c) 2026 RoomFleet contributors

package logger

import (
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level aliases keep call sites short (logger.SetLevel(logger.DEBUG)).
const (
	DEBUG = zapcore.DebugLevel
	INFO  = zapcore.InfoLevel
	WARN  = zapcore.WarnLevel
	ERROR = zapcore.ErrorLevel
)

var (
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base        = newBaseLogger()
)

func newBaseLogger() *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		atomicLevel,
	)
	return zap.New(core)
}

// SetLevel adjusts the global minimum log level at runtime.
func SetLevel(level zapcore.Level) {
	atomicLevel.SetLevel(level)
}

// SetOutput replaces the logging backend. Intended for tests that want to
// capture output; production code uses the default stderr core.
func SetOutput(core zapcore.Core) {
	base = zap.New(core)
}

func fieldsOf(component string, fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("component", component))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func DebugC(component, msg string) {
	base.Debug(msg, zap.String("component", component))
}

func InfoC(component, msg string) {
	base.Info(msg, zap.String("component", component))
}

func WarnC(component, msg string) {
	base.Warn(msg, zap.String("component", component))
}

func ErrorC(component, msg string) {
	base.Error(msg, zap.String("component", component))
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	base.Debug(msg, fieldsOf(component, fields)...)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	base.Info(msg, fieldsOf(component, fields)...)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	base.Warn(msg, fieldsOf(component, fields)...)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	base.Error(msg, fieldsOf(component, fields)...)
}
