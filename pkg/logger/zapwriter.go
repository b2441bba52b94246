package logger

import (
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
)

// ZapWriter 把 go-zero 内部组件的 logx 输出桥接到全局 zap logger
type ZapWriter struct{}

var _ logx.Writer = ZapWriter{}

func toZapFields(fields ...logx.LogField) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func (w ZapWriter) Alert(v interface{}) {
	base.Error(fmt.Sprint(v))
}

func (w ZapWriter) Close() error {
	return base.Sync()
}

func (w ZapWriter) Debug(v interface{}, fields ...logx.LogField) {
	base.Debug(fmt.Sprint(v), toZapFields(fields...)...)
}

func (w ZapWriter) Error(v interface{}, fields ...logx.LogField) {
	base.Error(fmt.Sprint(v), toZapFields(fields...)...)
}

func (w ZapWriter) Info(v interface{}, fields ...logx.LogField) {
	base.Info(fmt.Sprint(v), toZapFields(fields...)...)
}

func (w ZapWriter) Severe(v interface{}) {
	base.Error(fmt.Sprint(v))
}

func (w ZapWriter) Slow(v interface{}, fields ...logx.LogField) {
	base.Warn(fmt.Sprint(v), toZapFields(fields...)...)
}

func (w ZapWriter) Stack(v interface{}) {
	base.Error(fmt.Sprint(v), zap.Stack("stack"))
}

func (w ZapWriter) Stat(v interface{}, fields ...logx.LogField) {
	base.Info(fmt.Sprint(v), toZapFields(fields...)...)
}
