package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a stub.
type execIface interface {
	isLoggedIn() bool
	SignUp(ctx context.Context) error
	SignIn(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Token(ctx context.Context) error
	Refresh(ctx context.Context) error
	List(ctx context.Context, collection string) error
	Upload(ctx context.Context, path string) error
	SignOut(ctx context.Context) error
}

// runREPL starts a read-eval-print loop over the sbase commands.
//
// It reads a line from the scanner, parses the first token as the command,
// and dispatches to methods on 'a'. The loop exits on scanner EOF or when
// the user types "exit" or "quit". Errors from command handlers are ignored
// here; handlers report their own errors to the user.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("sbase> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, token, refresh, list <collection>, upload <path>, signout, exit")
			} else {
				printlnFn("Available commands: signup, signin, exit")
			}

		case "signup":
			_ = a.SignUp(ctx)

		case "signin", "login":
			_ = a.SignIn(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "token":
			_ = a.Token(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "l", "list":
			if len(parts) < 2 {
				printlnFn("Usage: list <collection>")
				continue
			}
			_ = a.List(ctx, parts[1])

		case "upload":
			if len(parts) < 2 {
				printlnFn("Usage: upload <path>")
				continue
			}
			_ = a.Upload(ctx, parts[1])

		case "signout", "logout":
			_ = a.SignOut(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
