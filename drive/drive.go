// Package drive runs ECMAScript choice policies for the simulator.
//
// A chooser script is the body of a function that receives the
// current simulator state as 'state' (field names as in the JSON
// encoding) and returns the label of the option to take, or nothing
// for the default.  Scripts are compiled once and evaluated in a
// fresh runtime per call.
//
// See https://github.com/dop251/goja.
package drive

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/onemanifold/SMPST-sub003/sim"

	"github.com/dop251/goja"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Choose if script execution hits
	// the chooser's timeout.
	Interrupted = errors.New(InterruptedMessage)
)

// Chooser is a compiled ECMAScript choice policy.  Implements
// sim.Chooser.
type Chooser struct {
	prog *goja.Program

	// Timeout bounds one script evaluation.  Zero means no bound.
	Timeout time.Duration

	// Verbose makes the script's log() calls go to the process
	// log.
	Verbose bool
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function(state) {\n%s\n})", src)
}

// NewChooser compiles the given script source.
func NewChooser(src string) (*Chooser, error) {
	prog, err := goja.Compile("chooser", wrapSrc(src), true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + src)
	}
	return &Chooser{prog: prog}, nil
}

// Choose evaluates the script against the given state.
func (c *Chooser) Choose(st *sim.State) (string, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	vm.Set("log", func(args ...interface{}) {
		if c.Verbose {
			log.Println(append([]interface{}{"chooser:"}, args...)...)
		}
	})

	if c.Timeout > 0 {
		timer := time.AfterFunc(c.Timeout, func() {
			vm.Interrupt(Interrupted)
		})
		defer timer.Stop()
	}

	v, err := vm.RunProgram(c.prog)
	if err != nil {
		return "", err
	}
	fn, is := goja.AssertFunction(v)
	if !is {
		return "", errors.New("chooser did not compile to a function")
	}

	res, err := fn(goja.Undefined(), vm.ToValue(st))
	if err != nil {
		if _, interrupted := err.(*goja.InterruptedError); interrupted {
			return "", Interrupted
		}
		return "", err
	}

	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return "", nil
	}
	label, is := res.Export().(string)
	if !is {
		return "", fmt.Errorf("chooser returned %T, wanted a string label", res.Export())
	}
	return label, nil
}
