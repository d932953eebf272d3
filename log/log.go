package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
	logger *zap.Logger
	once   sync.Once
)

func L() *zap.Logger {
	once.Do(func() {
		if logger != nil {
			return
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	})
	return logger
}

// 替换全局logger（测试或嵌入其他服务时使用）
func SetLogger(l *zap.Logger) {
	once.Do(func() {})
	logger = l.WithOptions(zap.AddCallerSkip(1))
}

// 设置日志级别：debug, info, warn, error
func SetLevel(lvl string) (err error) {
	var l zapcore.Level
	if err = l.UnmarshalText([]byte(lvl)); err != nil {
		return
	}
	level.SetLevel(l)
	return
}

func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

func Sync() error {
	return L().Sync()
}
