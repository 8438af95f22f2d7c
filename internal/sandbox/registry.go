package sandbox

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var registry = struct {
	mu   sync.Mutex
	live map[*Sandbox]struct{}
}{live: make(map[*Sandbox]struct{})}

func register(s *Sandbox) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.live[s] = struct{}{}
}

func unregister(s *Sandbox) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.live, s)
}

// Live returns the number of sandboxes not yet closed.
func Live() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.live)
}

// CloseAll closes every sandbox that has not been closed yet.
func CloseAll() {
	registry.mu.Lock()
	live := make([]*Sandbox, 0, len(registry.live))
	for s := range registry.live {
		live = append(live, s)
	}
	registry.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
}

// InstallSignalHandler closes every live sandbox and runs hooks when the
// process receives SIGINT or SIGTERM, then exits with 128+signal.
// The returned function uninstalls the handler.
func InstallSignalHandler(hooks ...func()) (stop func()) {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigs:
			CloseAll()
			for _, hook := range hooks {
				hook()
			}
			code := 130
			if sig == syscall.SIGTERM {
				code = 143
			}
			os.Exit(code)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
		})
	}
}
