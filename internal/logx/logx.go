// Package logx wraps logrus with krar's leveled, debug-stack-trace
// idiom, adapted from Sonobuoy's pkg/errlog: a package-level log
// level flag type, a debug toggle, and an error logger that prints a
// stack trace only in debug mode.
package logx

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DebugOutput controls whether LogError includes a %+v stack trace.
var DebugOutput = false

// Level is a pflag.Value wrapping logrus's level names.
type Level string

func (l *Level) String() string { return string(*l) }
func (l *Level) Type() string   { return "level" }
func (l *Level) Set(s string) error {
	*l = Level(s)
	return SetLevel(s)
}

// SetLevel parses s and applies it to the default logrus logger.
func SetLevel(s string) error {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return fmt.Errorf("unknown log level %q", s)
	}
	logrus.SetLevel(lvl)
	if lvl >= logrus.DebugLevel {
		DebugOutput = true
	}
	return nil
}

// SetFormat switches between text and json output, per
// the --log-format flag.
func SetFormat(format string) error {
	switch format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// LogError logs err, including a stack trace when DebugOutput is set,
// mirroring pkg/errlog.LogError.
func LogError(err error) {
	if DebugOutput {
		logrus.WithField("trace", fmt.Sprintf("%+v", err)).Error(err)
	} else {
		logrus.Error(err.Error())
	}
}
