package envrunner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AITechTim/tox4-conda/internal/tools"
	"github.com/google/uuid"
)

var (
	ErrInvalidRequest = errors.New("envrunner: invalid request")
	ErrCommandFailed  = errors.New("envrunner: command failed")
)

// Request describes one command execution inside a managed environment.
type Request struct {
	RunID string
	Cmd   []string
	Cwd   string
	Env   map[string]string
}

// NewRequest builds a request with a generated run id.
func NewRequest(cmd ...string) Request {
	return Request{RunID: uuid.NewString(), Cmd: cmd}
}

// Validate checks the minimal executable shape of the request.
func (r Request) Validate() error {
	if len(r.Cmd) == 0 {
		return fmt.Errorf("%w: empty command", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Cmd[0]) == "" {
		return fmt.Errorf("%w: blank executable", ErrInvalidRequest)
	}
	return nil
}

// Shell renders the request argv as a quoted command line for logs.
func (r Request) Shell() string {
	return tools.JoinCommand(r.Cmd)
}

func (r Request) withRunID() Request {
	if strings.TrimSpace(r.RunID) == "" {
		r.RunID = uuid.NewString()
	}
	return r
}

// Outcome captures the result of one executed request.
type Outcome struct {
	RunID    string
	Cmd      []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Elapsed  time.Duration
}

// Success reports whether the command exited zero.
func (o Outcome) Success() bool {
	return o.ExitCode == 0
}

// Failed returns a descriptive error for unsuccessful outcomes, nil otherwise.
func (o Outcome) Failed() error {
	if o.Success() {
		return nil
	}
	return fmt.Errorf(
		"%w: cmd=%s exit=%d stderr=%q",
		ErrCommandFailed,
		tools.JoinCommand(o.Cmd),
		o.ExitCode,
		strings.TrimSpace(string(o.Stderr)),
	)
}
