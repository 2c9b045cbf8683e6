package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callerHook points Entry.Caller at the first frame outside logrus and this
// package, so gateway log lines name the gateway or connector call site.
type callerHook struct {
	skip []string
}

func newCallerHook() *callerHook {
	return &callerHook{skip: []string{"github.com/sirupsen/logrus.", "exgateway/logger."}}
}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	if frame, ok := h.callSite(); ok {
		entry.Caller = &frame
	}
	return nil
}

func (h *callerHook) callSite() (runtime.Frame, bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !h.wrapper(frame.Function) {
			return frame, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

func (h *callerHook) wrapper(function string) bool {
	for _, prefix := range h.skip {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}
