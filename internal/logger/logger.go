package logger

import (
	"io"
	"os"
	"time"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	logrus "github.com/sirupsen/logrus"
)

// Setup initializes Logrus to write to stdout and a rotating file, and returns
// the shared writer so other loggers (HTTP access log) can use the same sink.
func Setup(logFile, level string) io.Writer {
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     7, // days
		Compress:   true,
	}
	out := io.MultiWriter(os.Stdout, rotator)

	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	return out
}

// RequestLogger logs one line per HTTP request through zerolog on out.
func RequestLogger(out io.Writer) gin.HandlerFunc {
	base := zerolog.New(out).With().Timestamp().Logger()
	return ginlog.SetLogger(
		ginlog.WithUTC(true),
		ginlog.WithSkipPath([]string{"/healthz", "/metrics"}),
		ginlog.WithLogger(func(c *gin.Context, _ zerolog.Logger) zerolog.Logger {
			return base.With().Str("component", "http").Logger()
		}),
	)
}
