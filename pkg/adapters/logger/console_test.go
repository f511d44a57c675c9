package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/user/runcompare/pkg/ports"
)

func TestConsoleLogger_Levels(t *testing.T) {
	tests := []struct {
		level ports.LogLevel
		want  []string
		skip  []string
	}{
		{ports.LevelDebug, []string{"dbg", "inf", "wrn", "err"}, nil},
		{ports.LevelInfo, []string{"inf", "wrn", "err"}, []string{"dbg"}},
		{ports.LevelError, []string{"err"}, []string{"dbg", "inf", "wrn"}},
		{ports.LevelQuiet, nil, []string{"dbg", "inf", "wrn", "err"}},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWriter(tt.level, &buf)
			l.Debug("dbg")
			l.Info("inf")
			l.Warn("wrn")
			l.Error("err")

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %q in output %q", w, out)
				}
			}
			for _, s := range tt.skip {
				if strings.Contains(out, s) {
					t.Errorf("unexpected %q in output %q", s, out)
				}
			}
		})
	}
}

func TestConsoleLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(ports.LevelDebug, &buf).WithComponent("plan")
	l.Debug("Planned %d segments", 3)

	if got := strings.TrimSpace(buf.String()); got != "[plan] Planned 3 segments" {
		t.Errorf("unexpected output %q", got)
	}
}
