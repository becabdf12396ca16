package logger

import (
	"os"
	"path/filepath"

	"auto-tube/app/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 包装 zap.Logger
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// New 使用给定配置创建新的日志记录器实例
func New(cfg config.LogConfig) *Logger {
	// 设置日志级别
	level := zapcore.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	case "fatal":
		level = zapcore.FatalLevel
	}

	// 设置编码器配置
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// 设置编码器
	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		// 为文本格式设置更友好的编码器配置
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	// 设置输出
	var core zapcore.Core
	if cfg.Output == "file" {
		logFile := "data/logs/auto-tube.log"
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			panic("创建日志目录失败: " + err.Error())
		}

		// 配置 lumberjack 进行日志轮转
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    cfg.MaxSize,    // 兆字节
			MaxBackups: cfg.MaxBackups, // 备份数量
			MaxAge:     cfg.MaxAge,     // 天数
			Compress:   cfg.Compress,   // 压缩旧文件
		})

		if cfg.Level == "debug" {
			// 调试模式下同时写入文件和标准输出
			consoleEncoderConfig := encoderConfig
			consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig)

			fileCore := zapcore.NewCore(encoder, fileWriter, level)
			consoleCore := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)
			core = zapcore.NewTee(fileCore, consoleCore)
		} else {
			core = zapcore.NewCore(encoder, fileWriter, level)
		}
	} else {
		core = zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	}

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{
		Logger: logger,
		sugar:  logger.Sugar(),
	}
}

// WithField 向日志记录器添加字段
func (l *Logger) WithField(key string, value interface{}) *zap.Logger {
	return l.Logger.With(zap.Any(key, value))
}

// WithError 向日志记录器添加错误字段
func (l *Logger) WithError(err error) *zap.Logger {
	return l.Logger.With(zap.Error(err))
}

// 便捷方法，使用 SugaredLogger 的格式化功能
func (l *Logger) Debugf(template string, args ...interface{}) {
	l.sugar.Debugf(template, args...)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}

func (l *Logger) Fatalf(template string, args ...interface{}) {
	l.sugar.Fatalf(template, args...)
}

// Sync 刷新缓冲区
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
