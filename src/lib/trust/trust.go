package trust

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"equanimity/src/lib/console"
	"equanimity/src/lib/semihosting"
)

type MaskLevel int

const (
	Nothing   MaskLevel = 0x0
	ErrorMask MaskLevel = 0x1
	WarnMask  MaskLevel = 0x2
	InfoMask  MaskLevel = 0x4
	DebugMask MaskLevel = 0x8
	StatsMask MaskLevel = 0x10
	fatalMask MaskLevel = 0x80

	allMasks = ErrorMask | WarnMask | InfoMask | DebugMask | StatsMask
)

var level = fatalMask | allMasks

var logger = newLogger(console.NewWriter(os.Stdout))

func init() {
	semihosting.OnShutdown(func() { _ = Sync() })
}

// consoleSink lets the zap core write through a kernel console.
type consoleSink struct {
	c console.Console
}

func (s consoleSink) Write(p []byte) (int, error) {
	s.c.WriteString(string(p))
	return len(p), nil
}

func (s consoleSink) Sync() error { return nil }

func newLogger(c console.Console) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		LevelKey:         "L",
		NameKey:          "N",
		MessageKey:       "M",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	})
	core := zapcore.NewCore(enc, consoleSink{c: c}, zapcore.DebugLevel)
	return zap.New(core).Named("kernel")
}

// SetOutput points all kernel logging at c.
func SetOutput(c console.Console) {
	_ = logger.Sync()
	logger = newLogger(c)
}

// Sync flushes anything the logger has buffered. It is run on shutdown.
func Sync() error {
	return logger.Sync()
}

// SetLevel lets you set an error mask directly. You can pass in something like
// ErrorMask | DebugMask to control exactly what gets printed.  It returns the
// previous mask. Fatal messages can't be masked.
func SetLevel(mask MaskLevel) MaskLevel {
	if mask&allMasks == 0 {
		logger.Warn("trust.SetLevel is turning off log messages")
	}
	r := level & allMasks
	level = (mask & allMasks) | fatalMask
	return r
}

func Level() MaskLevel {
	return level
}

// ParseLevel turns a conventional level name into a mask: each name
// includes everything more severe than itself. Stats ride along with info.
func ParseLevel(name string) (MaskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "fatal":
		return Nothing, nil
	case "error":
		return ErrorMask, nil
	case "warn", "warning":
		return ErrorMask | WarnMask, nil
	case "info", "":
		return ErrorMask | WarnMask | InfoMask | StatsMask, nil
	case "debug", "all":
		return allMasks, nil
	}
	return Nothing, fmt.Errorf("unknown log level %q", name)
}

func LevelToString() string {
	var names []string
	if level&ErrorMask > 0 {
		names = append(names, "error")
	}
	if level&WarnMask > 0 {
		names = append(names, "warn")
	}
	if level&InfoMask > 0 {
		names = append(names, "info")
	}
	if level&DebugMask > 0 {
		names = append(names, "debug")
	}
	if level&StatsMask > 0 {
		names = append(names, "stats")
	}
	return strings.Join(names, " ")
}

func logf(l MaskLevel, format string, params []interface{}, fields ...zap.Field) {
	if level&l == 0 {
		return
	}
	msg := strings.TrimSuffix(fmt.Sprintf(format, params...), "\n")
	switch {
	case l&fatalMask > 0:
		// written straight to the core: the logger's own fatal hook would exit
		// the process before semihosting gets a chance to flush.
		_ = logger.Core().Write(zapcore.Entry{
			Level:      zapcore.FatalLevel,
			LoggerName: "kernel",
			Message:    msg,
		}, fields)
	case l&ErrorMask > 0:
		logger.Error(msg, fields...)
	case l&WarnMask > 0:
		logger.Warn(msg, fields...)
	case l&InfoMask > 0:
		logger.Info(msg, fields...)
	case l&DebugMask > 0:
		logger.Debug(msg, fields...)
	case l&StatsMask > 0:
		logger.Info(msg, fields...)
	}
}

//Fatalf prints the given log message (format + params) on the console and then
//exits with the exitCode provided.  Fatalf is not maskable.
func Fatalf(exitCode int, format string, params ...interface{}) {
	logf(fatalMask, format, params)
	semihosting.Exit(uint64(exitCode))
}

//Errorf prints the given log message (format + params) using the ErrorMask level.
func Errorf(format string, params ...interface{}) {
	logf(ErrorMask, format, params)
}

//Warnf prints the given log message (format + params) using the WarnMask level.
func Warnf(format string, params ...interface{}) {
	logf(WarnMask, format, params)
}

//Infof prints the given log message (format + params) using the InfoMask level.
func Infof(format string, params ...interface{}) {
	logf(InfoMask, format, params)
}

//Debugf prints the given log message (format + params) using the DebugMask level.
func Debugf(format string, params ...interface{}) {
	logf(DebugMask, format, params)
}

//Statsf prints the given log message (format + params) using the StatsMask level and
//takes an extra parameter that will be visible in the log message as the category
//of stats that is reported.
func Statsf(category string, format string, params ...interface{}) {
	logf(StatsMask, format, params, zap.String("stats", category))
}
