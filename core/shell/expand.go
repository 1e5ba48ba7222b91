package shell

import (
	"strconv"
	"strings"
)

// PIDToken is replaced by the interpreter's process ID in every argument.
const PIDToken = "$$"

// Expander performs variable expansion on command arguments.
type Expander struct {
	// PID is the decimal process ID substituted for PIDToken.
	PID string
}

// NewExpander creates an Expander for the given process ID.
func NewExpander(pid int) Expander {
	return Expander{PID: strconv.Itoa(pid)}
}

// Expand replaces every PIDToken in arg. The scan restarts from the beginning
// after each replacement so "$$$" becomes the PID followed by "$".
func (e Expander) Expand(arg string) string {
	for {
		idx := strings.Index(arg, PIDToken)
		if idx < 0 {
			return arg
		}
		arg = arg[:idx] + e.PID + arg[idx+len(PIDToken):]
	}
}
