package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/shopkeeper/internal/client/navigation"
)

// screenNavigator is the terminal's screen stack.
type screenNavigator struct {
	out io.Writer

	mu      sync.Mutex
	stack   []navigation.Route
	changed chan struct{}
}

func newScreenNavigator(out io.Writer) *screenNavigator {
	return &screenNavigator{
		out:     out,
		stack:   []navigation.Route{{Screen: navigation.ScreenSplash}},
		changed: make(chan struct{}),
	}
}

// Reset implements navigation.Navigator.
func (n *screenNavigator) Reset(route navigation.Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stack = []navigation.Route{route}
	n.enterLocked(route)
}

// Push opens a screen on top of the current one.
func (n *screenNavigator) Push(route navigation.Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stack = append(n.stack, route)
	n.enterLocked(route)
}

// Back leaves the current screen. The root screen cannot be left.
func (n *screenNavigator) Back() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) < 2 {
		return false
	}
	n.stack = n.stack[:len(n.stack)-1]
	n.enterLocked(n.stack[len(n.stack)-1])
	return true
}

func (n *screenNavigator) Current() navigation.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stack[len(n.stack)-1]
}

func (n *screenNavigator) Depth() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.stack)
}

func (n *screenNavigator) enterLocked(route navigation.Route) {
	fmt.Fprintln(n.out, screenTitle(route))
	close(n.changed)
	n.changed = make(chan struct{})
}

// WaitFor blocks until the current screen is want or ctx is done.
func (n *screenNavigator) WaitFor(ctx context.Context, want navigation.Route) bool {
	for {
		n.mu.Lock()
		current := n.stack[len(n.stack)-1]
		changed := n.changed
		n.mu.Unlock()

		if current == want {
			return true
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}

func screenTitle(r navigation.Route) string {
	switch r.Screen {
	case navigation.ScreenSplash:
		return "== shopkeeper: starting =="
	case navigation.ScreenLoginChooser:
		return "== Sign in: type 'password' or 'otp' =="
	case navigation.ScreenOTP:
		return fmt.Sprintf("== Verify %s: type 'code' to enter the emailed code ==", r.Email)
	case navigation.ScreenAdminDashboard:
		return "== Admin dashboard =="
	case navigation.ScreenStaffHome:
		return "== Staff home =="
	default:
		return "== " + r.String() + " =="
	}
}
