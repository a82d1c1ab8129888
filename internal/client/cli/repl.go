package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/shopkeeper/internal/client/navigation"
)

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests provide a lightweight stub.
type execIface interface {
	PasswordSignIn(ctx context.Context) error
	RequestCode(ctx context.Context) error
	VerifyCode(ctx context.Context) error
	ResendCode(ctx context.Context) error
	Back(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Logout(ctx context.Context) error
}

type screenSource interface {
	Current() navigation.Route
}

type command struct {
	names []string
	help  string
	run   func(execIface, context.Context) error
}

var (
	signedInCommands = []command{
		{[]string{"whoami", "w"}, "show the signed-in profile", execIface.WhoAmI},
		{[]string{"passwd"}, "change your password", execIface.ChangePassword},
		{[]string{"logout"}, "sign out", execIface.Logout},
	}

	screenCommands = map[navigation.Screen][]command{
		navigation.ScreenLoginChooser: {
			{[]string{"password", "p"}, "sign in with username or email and password", execIface.PasswordSignIn},
			{[]string{"otp", "o"}, "sign in with a code sent by email", execIface.RequestCode},
		},
		navigation.ScreenOTP: {
			{[]string{"code", "c"}, "enter the emailed code", execIface.VerifyCode},
			{[]string{"resend"}, "send a new code", execIface.ResendCode},
			{[]string{"back"}, "return to sign-in", execIface.Back},
		},
		navigation.ScreenStaffHome:      signedInCommands,
		navigation.ScreenAdminDashboard: signedInCommands,
	}
)

func lookup(screen navigation.Screen, name string) (command, bool) {
	for _, c := range screenCommands[screen] {
		for _, n := range c.names {
			if n == name {
				return c, true
			}
		}
	}
	return command{}, false
}

func printHelp(w io.Writer, screen navigation.Screen) {
	fmt.Fprintln(w, "Available commands:")
	for _, c := range screenCommands[screen] {
		fmt.Fprintf(w, "  %-10s %s\n", c.names[0], c.help)
	}
	fmt.Fprintf(w, "  %-10s %s\n", "exit", "leave the program")
}

// runREPL reads commands until EOF or "exit"/"quit". The commands accepted
// depend on the screen currently shown. Handlers report their own errors,
// so failures do not end the loop.
func runREPL(ctx context.Context, a execIface, screens screenSource, reader *bufio.Reader, out io.Writer) {
	for {
		route := screens.Current()
		fmt.Fprintf(out, "shop %s> ", route.Screen)

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		name := parts[0]
		switch name {
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		case "help", "h":
			printHelp(out, route.Screen)
			continue
		}

		c, ok := lookup(route.Screen, name)
		if !ok {
			fmt.Fprintln(out, "Unknown command:", name)
			continue
		}
		_ = c.run(a, ctx)
	}
}
