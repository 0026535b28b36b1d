package cli

import "fmt"

// Exit codes distinguish the failure modes scripts branch on: a run or
// server call that failed, a workflow file that does not exist, and input
// that exists but will not parse.
const (
	exitSuccess      = 0
	exitRuntime      = 2
	exitFileNotFound = 3
	exitInputParse   = 4
)

// ExitError names the process exit code a failed command wants. RunE funcs
// return it and main unwraps it with errors.As before calling os.Exit.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
