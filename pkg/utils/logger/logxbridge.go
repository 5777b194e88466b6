package logger

import (
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
)

// zapWriter routes go-zero's logx output into the zap cores so library
// internals and application logs land in the same files.
type zapWriter struct {
	logger *zap.Logger
}

// RedirectLogx points logx at the global zap logger. Call after Init.
func RedirectLogx() {
	if globalLogger == nil {
		return
	}
	logx.SetWriter(&zapWriter{logger: globalLogger.zap})
	logx.DisableStat()
}

func toZapFields(fields []logx.LogField) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func (w *zapWriter) Alert(v interface{}) {
	w.logger.Error(fmt.Sprint(v))
}

func (w *zapWriter) Close() error {
	return w.logger.Sync()
}

func (w *zapWriter) Debug(v interface{}, fields ...logx.LogField) {
	w.logger.Debug(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *zapWriter) Error(v interface{}, fields ...logx.LogField) {
	w.logger.Error(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *zapWriter) Info(v interface{}, fields ...logx.LogField) {
	w.logger.Info(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *zapWriter) Severe(v interface{}) {
	w.logger.Error(fmt.Sprint(v))
}

func (w *zapWriter) Slow(v interface{}, fields ...logx.LogField) {
	w.logger.Warn(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *zapWriter) Stack(v interface{}) {
	w.logger.Error(fmt.Sprint(v), zap.Stack("stack"))
}

func (w *zapWriter) Stat(v interface{}, fields ...logx.LogField) {
	w.logger.Info(fmt.Sprint(v), toZapFields(fields)...)
}
