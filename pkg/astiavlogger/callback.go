// Package astiavlogger routes libav's log output into the process logger,
// so demuxer/codec diagnostics end up in the same stream as everything
// else instead of on stderr.
package astiavlogger

import (
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	logger "github.com/facebookincubator/go-belt/tool/logger/types"
)

func Callback(l logger.Logger) astiav.LogCallback {
	var locker sync.Mutex
	return func(c astiav.Classer, level astiav.LogLevel, format, msg string) {
		locker.Lock()
		defer locker.Unlock()
		if c != nil {
			if cl := c.Class(); cl != nil {
				l = l.WithField("av_class", cl.Name())
			}
		}
		l.Logf(LogLevelFromAstiav(level), "%s", strings.TrimSpace(msg))
	}
}

func LogLevelFromAstiav(level astiav.LogLevel) logger.Level {
	switch level {
	case astiav.LogLevelQuiet:
		return logger.LevelFatal
	case astiav.LogLevelPanic:
		return logger.LevelPanic
	case astiav.LogLevelFatal:
		return logger.LevelFatal
	case astiav.LogLevelError:
		return logger.LevelError
	case astiav.LogLevelWarning:
		return logger.LevelWarning
	case astiav.LogLevelInfo:
		return logger.LevelInfo
	case astiav.LogLevelVerbose, astiav.LogLevelDebug:
		return logger.LevelDebug
	default:
		return logger.LevelTrace
	}
}

func LogLevelToAstiav(level logger.Level) astiav.LogLevel {
	switch level {
	case logger.LevelPanic:
		return astiav.LogLevelPanic
	case logger.LevelFatal:
		return astiav.LogLevelFatal
	case logger.LevelError:
		return astiav.LogLevelError
	case logger.LevelWarning:
		return astiav.LogLevelWarning
	case logger.LevelInfo:
		return astiav.LogLevelInfo
	case logger.LevelDebug:
		return astiav.LogLevelVerbose
	default:
		return astiav.LogLevelDebug
	}
}
