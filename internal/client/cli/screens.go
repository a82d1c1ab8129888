package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/client/auth"
	"github.com/dmitrijs2005/shopkeeper/internal/client/navigation"
	"github.com/dmitrijs2005/shopkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

const settleTimeout = 2 * time.Second

// settle waits until the guard has shown the screen st leads to, so the
// next prompt is drawn for the right screen.
func (a *App) settle(ctx context.Context, st auth.State) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	a.nav.WaitFor(ctx, navigation.Destination(st))
}

func (a *App) report(err error) {
	if err != nil {
		fmt.Fprintln(a.out, describeError(err))
	}
}

// PasswordSignIn asks for an identifier and password. An unverified account
// gets a code sent right away and lands on the OTP screen.
func (a *App) PasswordSignIn(ctx context.Context) error {
	identifier, err := getSimpleText(a.reader, "Username or email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	st, err := a.machine.SignInWithPassword(ctx, identifier, string(password))
	a.report(err)
	if errors.Is(err, auth.ErrEmailUnverified) {
		if otpErr := a.machine.SignInWithOTP(ctx, st.Email); otpErr != nil {
			a.report(otpErr)
		} else {
			fmt.Fprintf(a.out, "A code was sent to %s.\n", st.Email)
		}
	}
	a.settle(ctx, st)
	return err
}

// RequestCode starts a passwordless sign-in from the login screen.
func (a *App) RequestCode(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	if err := a.machine.SignInWithOTP(ctx, email); err != nil {
		a.report(err)
		return err
	}
	fmt.Fprintf(a.out, "If %s is registered, a code is on its way.\n", email)
	a.nav.Push(navigation.Route{Screen: navigation.ScreenOTP, Email: email})
	return nil
}

func (a *App) ResendCode(ctx context.Context) error {
	email := a.nav.Current().Email
	if err := a.machine.SignInWithOTP(ctx, email); err != nil {
		a.report(err)
		return err
	}
	fmt.Fprintf(a.out, "A new code was sent to %s.\n", email)
	return nil
}

func (a *App) VerifyCode(ctx context.Context) error {
	email := a.nav.Current().Email
	code, err := getSimpleText(a.reader, "Code", a.out)
	if err != nil {
		return err
	}
	before := a.machine.Current().Status
	st, err := a.machine.VerifyOTP(ctx, email, code)
	a.report(err)
	if st.Status != before {
		a.settle(ctx, st)
	}
	return err
}

// Back leaves a pushed OTP screen. On an OTP screen the session put us on,
// backing out abandons the pending sign-in.
func (a *App) Back(ctx context.Context) error {
	if a.nav.Back() {
		return nil
	}
	if a.machine.Current().Status == auth.StatusPendingVerification {
		a.settle(ctx, a.machine.Logout(ctx))
	}
	return nil
}

func (a *App) WhoAmI(context.Context) error {
	st := a.machine.Current()
	if !st.IsAuthenticated() {
		a.report(auth.ErrNotAuthenticated)
		return auth.ErrNotAuthenticated
	}
	p := st.Profile
	fmt.Fprintf(a.out, "%s <%s>, role %s\n", p.Name, p.Email, p.Role)
	if p.PhotoURL != "" {
		fmt.Fprintf(a.out, "photo: %s\n", p.PhotoURL)
	}
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	first, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(first)
	second, err := getPassword("Repeat new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(second)

	if !bytes.Equal(first, second) {
		fmt.Fprintln(a.out, "Passwords do not match.")
		return errPasswordMismatch
	}
	if err := a.machine.ChangePassword(ctx, string(first)); err != nil {
		a.report(err)
		return err
	}
	fmt.Fprintln(a.out, "Password changed.")
	return nil
}

var errPasswordMismatch = errors.New("passwords do not match")

func (a *App) Logout(ctx context.Context) error {
	a.settle(ctx, a.machine.Logout(ctx))
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}
