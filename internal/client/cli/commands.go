package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Test seams for interactive input.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

func (a *App) Register(ctx context.Context) error {
	var req api.RegisterRequest
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Email", &req.Email},
		{"First name", &req.FirstName},
		{"Last name", &req.LastName},
		{"Gender (optional)", &req.Gender},
	}
	for _, f := range fields {
		v, err := getSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return a.report(err)
		}
		*f.dst = v
	}

	password, err := getPassword(a.out)
	if err != nil {
		return a.report(err)
	}
	defer common.WipeByteArray(password)
	req.Password = string(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	user, err := a.client.Register(ctx, &req)
	if err != nil {
		return a.report(err)
	}
	a.userName = user.UserName
	fmt.Fprintf(a.out, "Registered %s (%s). Use 'login' to get a refresh token.\n", user.UserName, user.ID)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return a.report(err)
	}
	password, err := getPassword(a.out)
	if err != nil {
		return a.report(err)
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	session, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		return a.report(err)
	}
	a.userName = session.User.UserName
	fmt.Fprintf(a.out, "Logged in as %s. Session valid until %s.\n",
		session.User.UserName, session.RefreshTokenExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	user, err := a.client.WhoAmI(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "id:       %s\nusername: %s\nemail:    %s\nname:     %s %s\nroles:    %v\n",
		user.ID, user.UserName, user.Email, user.FirstName, user.LastName, user.Roles)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	exp, err := a.client.Refresh(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Access token renewed, valid until %s.\n", exp.Local().Format(time.RFC1123))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	msg, err := a.client.Logout(ctx)
	a.userName = ""
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) report(err error) error {
	fmt.Fprintf(a.out, "error: %v\n", err)
	return err
}
