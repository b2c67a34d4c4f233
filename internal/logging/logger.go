// Package logging provides zap logger helpers with rotating file sinks.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Loggers bundles the service-wide logger with the dedicated
// scraping logger. Errors from either are mirrored into errors.log.
type Loggers struct {
	// App records service lifecycle, HTTP, and scheduler events.
	App *zap.Logger
	// Scraping records fetch and parse activity for each update cycle.
	Scraping *zap.Logger
}

// New builds the logger pair, writing rotating files under dir.
// With development set, both loggers also echo to the console.
func New(dir string, development bool) *Loggers {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEnc := zapcore.NewJSONEncoder(encCfg)

	appSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, "app.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 10,
	})
	scrapingSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, "scraping.log"),
		MaxSize:    5,
		MaxBackups: 5,
	})
	errorSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, "errors.log"),
		MaxSize:    5,
		MaxBackups: 5,
	})

	errorCore := zapcore.NewCore(fileEnc, errorSink, zapcore.ErrorLevel)
	appCores := []zapcore.Core{
		zapcore.NewCore(fileEnc, appSink, zapcore.InfoLevel),
		errorCore,
	}
	scrapingCores := []zapcore.Core{
		zapcore.NewCore(fileEnc, scrapingSink, zapcore.InfoLevel),
		errorCore,
	}

	if development {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		console := zapcore.NewCore(
			zapcore.NewConsoleEncoder(devCfg),
			zapcore.Lock(os.Stdout),
			zapcore.DebugLevel,
		)
		appCores = append(appCores, console)
		scrapingCores = append(scrapingCores, console)
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return &Loggers{
		App:      zap.New(zapcore.NewTee(appCores...), opts...),
		Scraping: zap.New(zapcore.NewTee(scrapingCores...), opts...).Named("scraping"),
	}
}

// Sync flushes both loggers. Best effort; errors are ignored.
func (l *Loggers) Sync() {
	_ = l.App.Sync()
	_ = l.Scraping.Sync()
}
