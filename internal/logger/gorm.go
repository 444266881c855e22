package logger

import (
	"context"
	"errors"
	"time"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

type gormLogrus struct {
	log   logrus.FieldLogger
	level gormlogger.LogLevel
}

// GormLogger routes GORM statements into Logrus. SQL is logged at debug, slow
// queries at warn and failures at error; record-not-found is not a failure.
func GormLogger(log logrus.FieldLogger) gormlogger.Interface {
	return &gormLogrus{log: log, level: gormlogger.Warn}
}

func (g *gormLogrus) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *gormLogrus) Info(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.Infof(msg, data...)
	}
}

func (g *gormLogrus) Warn(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.Warnf(msg, data...)
	}
}

func (g *gormLogrus) Error(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.Errorf(msg, data...)
	}
}

func (g *gormLogrus) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := g.log.WithFields(logrus.Fields{
		"elapsed_ms": elapsed.Milliseconds(),
		"rows":       rows,
		"sql":        sql,
	})
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		entry.WithError(err).Error("query failed")
	case elapsed > slowQueryThreshold && g.level >= gormlogger.Warn:
		entry.Warn("slow query")
	case g.level >= gormlogger.Info:
		entry.Debug("query")
	}
}
