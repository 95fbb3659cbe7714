package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender routes entries to `tb.Log` so parallel tests keep their own output.
type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that logs through the given test object.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	line, err := formatLine(entry, fields)
	tapp.tb.Log(line)
	return err
}

func (tapp *testAppender) Sync() error {
	return nil
}
