package vkgpu

import (
	"fmt"
	"runtime"
	"strings"

	vk "github.com/vulkan-go/vulkan"
)

// newError turns a failed vulkan result into an error tagged with the
// calling function. Success yields nil.
func newError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("vulkan error: %w (%d)", vk.Error(ret), ret)
	}
	return fmt.Errorf("vulkan error: %w (%d) on %s", vk.Error(ret), ret, newStackFrame(pc))
}

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// orPanic runs the finalizers and panics when err is set. Pair it with a
// deferred checkErr to turn the panic back into a returned error.
func orPanic(err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	panic(err)
}

func checkErr(err *error) {
	v := recover()
	if v == nil {
		return
	}
	if e, ok := v.(error); ok {
		*err = e
		return
	}
	*err = fmt.Errorf("%+v", v)
}

type stackFrame struct {
	function string
	file     string
	line     int
}

func newStackFrame(pc uintptr) stackFrame {
	frame := stackFrame{function: "unknown"}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return frame
	}
	frame.function = fn.Name()
	frame.file, frame.line = fn.FileLine(pc)
	if i := strings.LastIndex(frame.file, "/"); i >= 0 {
		frame.file = frame.file[i+1:]
	}
	return frame
}

func (f stackFrame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.function, f.file, f.line)
}
