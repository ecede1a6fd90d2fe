// Package runlog collects the messages of one export run for display in a
// host log viewer.
package runlog

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Severity int

const (
	Message Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Message:
		return "message"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func severityOf(level logrus.Level) Severity {
	switch {
	case level <= logrus.ErrorLevel:
		return Error
	case level == logrus.WarnLevel:
		return Warning
	}
	return Message
}

type Entry struct {
	Time     time.Time
	Severity Severity
	Text     string
	Fields   map[string]interface{}
}

func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Severity.String())
	b.WriteString(": ")
	b.WriteString(e.Text)
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	return b.String()
}

// Log is a logrus hook that keeps every entry at or above its level.
type Log struct {
	mu      sync.Mutex
	level   logrus.Level
	entries []Entry
}

func New(level logrus.Level) *Log {
	return &Log{level: level}
}

func (l *Log) Levels() []logrus.Level {
	var out []logrus.Level
	for _, lv := range logrus.AllLevels {
		if lv <= l.level {
			out = append(out, lv)
		}
	}
	return out
}

func (l *Log) Fire(e *logrus.Entry) error {
	fields := make(map[string]interface{}, len(e.Data))
	for k, v := range e.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		fields[k] = v
	}
	l.mu.Lock()
	l.entries = append(l.entries, Entry{
		Time:     e.Time,
		Severity: severityOf(e.Level),
		Text:     e.Message,
		Fields:   fields,
	})
	l.mu.Unlock()
	return nil
}

func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Count returns the number of entries with severity s.
func (l *Log) Count(s Severity) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Severity == s {
			n++
		}
	}
	return n
}

// WriteTo prints one line per entry.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, e := range l.Entries() {
		m, err := fmt.Fprintln(w, e.String())
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Attach returns a logger that writes to out and records into l.
func Attach(l *Log, out io.Writer, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.AddHook(l)
	return logger
}
