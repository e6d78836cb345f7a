package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/velalang/bvc/errors"
	"github.com/velalang/bvc/ir"
)

var wd, _ = os.Getwd()

func ExpectEqual(t testing.TB, actual, expected interface{}, msg string) {
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("%s: got %v, expected %v\n%s", msg, actual, expected, stackTrace())
	}
}

// ExpectCodeEqual compares two instruction streams and, on mismatch,
// disassembles both sides so the failure message shows mnemonics
// instead of opaque Instruction structs.
func ExpectCodeEqual(t testing.TB, actual, expected []ir.Instruction, msg string) {
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("%s: got [%s], expected [%s]\n%s", msg, disassemble(actual), disassemble(expected), stackTrace())
	}
}

func disassemble(code []ir.Instruction) string {
	var parts []string
	for _, inst := range code {
		parts = append(parts, inst.String())
	}
	return strings.Join(parts, "; ")
}

func ExpectError(t testing.TB, expected error, msg string, fn func() error) {
	actual := fn()
	if expected != errors.Root(actual) {
		t.Errorf("%s: got error %v, expected %v\n%s", msg, actual, expected, stackTrace())
	}
}

func FatalErr(t testing.TB, err error) {
	args := []interface{}{err}
	for _, frame := range errors.Stack(err) {
		file := frame.File
		if rel, err := filepath.Rel(wd, file); err == nil && !strings.HasPrefix(rel, "../") {
			file = rel
		}
		funcname := frame.Func[strings.IndexByte(frame.Func, '.')+1:]
		s := fmt.Sprintf("\n%s:%d: %s", file, frame.Line, funcname)
		args = append(args, s)
	}
	t.Fatal(args...)
}

func stackTrace() []byte {
	buf := make([]byte, 16384)
	len := runtime.Stack(buf, false)
	return buf[:len]
}
