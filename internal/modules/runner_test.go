package modules

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// fakeRunner serves canned responses keyed by the full command line.
type fakeRunner struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	stdout string
	err    error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string]fakeResponse)}
}

func (r *fakeRunner) respond(cmdline, stdout string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[cmdline] = fakeResponse{stdout: stdout}
}

func (r *fakeRunner) fail(cmdline, stdout string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[cmdline] = fakeResponse{stdout: stdout, err: err}
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmdline)

	resp, ok := r.responses[cmdline]
	if !ok {
		return nil, fmt.Errorf("no response configured for %q", cmdline)
	}
	return []byte(resp.stdout), resp.err
}
