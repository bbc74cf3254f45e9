package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger: a console core plus a rotating file
// core under LogDir named bot_YYYYMMDD_HHMMSS.log. The file core always
// records at debug level; the console honors LogLevel.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	var consoleLevel zapcore.Level
	err := consoleLevel.UnmarshalText([]byte(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	err = os.MkdirAll(cfg.LogDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	logFile := filepath.Join(cfg.LogDir,
		fmt.Sprintf("bot_%s.log", time.Now().Format("20060102_150405")))

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50, // MB
		MaxBackups: 10,
		MaxAge:     14, // days
		Compress:   true,
	})

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileSink, zapcore.DebugLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stdout), consoleLevel),
	)

	return zap.New(core, zap.AddCaller()), nil
}
