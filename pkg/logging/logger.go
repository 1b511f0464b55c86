package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - настройка структурированного логирования
//
// Два файловых sink'а с общим префиксом плюс консоль:
//   - <prefix>.log: info и выше, полный операционный журнал
//   - <prefix>.err: warn и выше, только проблемы (деградация канала,
//     расхождения с брокером, аварийные остановки)
//
// Файлы открываются в append: журнал переживает перезапуск процесса.

// Config параметры логирования
type Config struct {
	// Dir - каталог для лог-файлов, создаётся при необходимости
	Dir string

	// Prefix - общий префикс файлов (обычно символ инструмента)
	Prefix string

	// Level - минимальный уровень: debug, info, warn, error
	Level string

	// Console - дублировать вывод в stdout
	Console bool
}

// New создаёт zap logger с файловыми sink'ами по конфигурации.
// Возвращённую функцию close нужно вызвать при остановке процесса.
func New(cfg Config) (*zap.Logger, func(), error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, err
	}

	logPath := filepath.Join(cfg.Dir, cfg.Prefix+".log")
	errPath := filepath.Join(cfg.Dir, cfg.Prefix+".err")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	errFile, err := os.OpenFile(errPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logFile.Close()
		return nil, nil, err
	}

	minLevel := parseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEnc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(fileEnc, zapcore.AddSync(logFile), minLevel),
		zapcore.NewCore(fileEnc, zapcore.AddSync(errFile), zap.WarnLevel),
	}

	if cfg.Console {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.AddSync(os.Stdout),
			minLevel,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	close := func() {
		_ = logger.Sync()
		logFile.Close()
		errFile.Close()
	}

	return logger, close, nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
