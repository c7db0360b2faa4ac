package logsvc

import (
	"log"

	"github.com/trezcool/darasa/core"
)

// TestLogger writes to the standard logger only; no external reporting.
type TestLogger struct {
	std *log.Logger
}

var _ core.Logger = (*TestLogger)(nil)

func NewTestLogger(std *log.Logger) *TestLogger {
	return &TestLogger{std: std}
}

func (l TestLogger) Enable(bool) {}

func (l TestLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l TestLogger) Debug(msg string, args ...interface{}) { l.print(msg, args) }
func (l TestLogger) Info(msg string, args ...interface{})  { l.print(msg, args) }
func (l TestLogger) Warn(msg string, args ...interface{})  { l.print(msg, args) }
func (l TestLogger) Error(msg string, args ...interface{}) { l.print(msg, args) }
func (l TestLogger) Fatal(msg string, args ...interface{}) { l.print(msg, args); l.std.Fatal(msg) }
