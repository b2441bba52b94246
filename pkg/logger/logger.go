package logger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数
type LogOption struct {
	Format   string // "console" 或 "json"
	LogDir   string // 为空时仅输出到 stdout
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩旧日志文件
}

var (
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	// 未显式初始化前使用开发配置，保证测试与早期启动日志可见
	base, _ = zap.NewDevelopment()
	sugar = base.Sugar()
}

// InitLogger 按配置重建全局 logger；LogDir 非空时通过 lumberjack 落盘并轮转
func InitLogger(opt LogOption) {
	level := parseLevel(opt.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(opt.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opt.LogDir != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, "service.log"),
			MaxSize:    256, // MB
			MaxBackups: 10,
			MaxAge:     7, // 天
			Compress:   opt.Compress,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = base.Sugar()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func Debugf(format string, args ...interface{}) { sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { sugar.Errorf(format, args...) }

// Sync 刷新缓冲日志，主进程退出前调用
func Sync() {
	_ = base.Sync()
}
