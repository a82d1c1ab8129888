// Package cli provides the interactive shopkeeper terminal client.
//
// Every screen of the client is a REPL mode: the prompt names the current
// screen and only that screen's commands are accepted. Which screen is shown
// is never decided here. The auth machine publishes the session state, the
// navigation guard maps it to an entry screen, and screenNavigator replaces
// its stack with that screen. Commands only call the machine.
//
//	login  - password, otp
//	otp    - code, resend, back
//	staff  - whoami, passwd, logout
//	admin  - whoami, passwd, logout
//
// The REPL is started with App.Run, which blocks until the user exits.
package cli
