package execx

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ScriptRunner is a scripted Runner for tests. Handlers are registered
// against an argv prefix; each Run call is matched against registered
// prefixes in order and dispatched to the first match. Unmatched commands
// succeed with empty output, mirroring an uninteresting host.
type ScriptRunner struct {
	mu    sync.Mutex
	rules []scriptRule
	calls [][]string
}

type scriptRule struct {
	prefix string
	hits   int
	fn     func(call int, argv []string) (Result, error)
}

// NewScriptRunner creates an empty ScriptRunner.
func NewScriptRunner() *ScriptRunner {
	return &ScriptRunner{}
}

// Handle registers fn for commands whose space-joined argv starts with
// prefix. fn receives the zero-based count of prior matches of the same rule
// so scripts can change behavior across poll ticks.
func (s *ScriptRunner) Handle(prefix string, fn func(call int, argv []string) (Result, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptRule{prefix: prefix, fn: fn})
}

// Stub registers a fixed successful response for the prefix.
func (s *ScriptRunner) Stub(prefix, stdout string) {
	s.Handle(prefix, func(int, []string) (Result, error) {
		return Result{Stdout: stdout}, nil
	})
}

// Fail registers a fixed non-zero-exit response for the prefix.
func (s *ScriptRunner) Fail(prefix, stderr string, exitCode int) {
	s.Handle(prefix, func(_ int, argv []string) (Result, error) {
		res := Result{Stderr: stderr, ExitCode: exitCode}
		return res, &ExecError{Kind: FailNonZeroExit, Argv: argv, Result: res}
	})
}

// Calls returns every argv seen, in order.
func (s *ScriptRunner) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsMatching returns every argv whose space-joined form starts with prefix.
func (s *ScriptRunner) CallsMatching(prefix string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [][]string
	for _, argv := range s.calls {
		if strings.HasPrefix(strings.Join(argv, " "), prefix) {
			out = append(out, argv)
		}
	}
	return out
}

func (s *ScriptRunner) Run(_ context.Context, _ time.Duration, argv ...string) (Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, argv)
	joined := strings.Join(argv, " ")
	for i := range s.rules {
		if strings.HasPrefix(joined, s.rules[i].prefix) {
			call := s.rules[i].hits
			s.rules[i].hits++
			fn := s.rules[i].fn
			s.mu.Unlock()
			return fn(call, argv)
		}
	}
	s.mu.Unlock()
	return Result{}, nil
}
