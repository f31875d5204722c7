package log

import (
	"testing"
)

// NewTestingLogger converts a testing.T into a logging interface that
// writes through t.Log, so log lines are attached to the test that
// produced them and hidden unless the test fails or -v is set.
func NewTestingLogger(t testing.TB) Logger {
	return testingLogger{t: t}
}

type testingLogger struct {
	t      testing.TB
	prefix []interface{}
}

func (l testingLogger) Debug(msg string, keyVals ...interface{}) { l.log("DEBUG", msg, keyVals) }
func (l testingLogger) Info(msg string, keyVals ...interface{})  { l.log("INFO", msg, keyVals) }
func (l testingLogger) Error(msg string, keyVals ...interface{}) { l.log("ERROR", msg, keyVals) }

func (l testingLogger) With(keyVals ...interface{}) Logger {
	prefix := make([]interface{}, 0, len(l.prefix)+len(keyVals))
	prefix = append(prefix, l.prefix...)
	prefix = append(prefix, keyVals...)
	return testingLogger{t: l.t, prefix: prefix}
}

func (l testingLogger) log(level, msg string, keyVals []interface{}) {
	l.t.Helper()
	args := make([]interface{}, 0, 2+len(l.prefix)+len(keyVals))
	args = append(args, level, msg)
	args = append(args, l.prefix...)
	args = append(args, keyVals...)
	l.t.Log(args...)
}
