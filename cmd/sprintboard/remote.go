package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/pflag"

	"github.com/kidandcat/sprintboard/internal/client"
)

// serverConnection holds the flags shared by commands that talk to a
// running server.
type serverConnection struct {
	URL      string
	Token    string
	Email    string
	Password string
}

func (c *serverConnection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.URL, "server", envOr("SPRINTBOARD_SERVER", "http://localhost:8080"), "server base URL")
	flagSet.StringVar(&c.Token, "token", os.Getenv("SPRINTBOARD_TOKEN"), "session token")
	flagSet.StringVar(&c.Email, "email", "", "sign in with this email when no token is given")
	flagSet.StringVar(&c.Password, "password", os.Getenv("SPRINTBOARD_PASSWORD"), "password for --email")
}

func (c *serverConnection) Connect(ctx context.Context) (*client.Client, error) {
	cl := client.New(c.URL, client.WithToken(c.Token))
	if c.Token != "" {
		return cl, nil
	}
	if c.Email == "" {
		return nil, errors.New("either --token or --email is required")
	}
	if _, err := cl.SignIn(ctx, c.Email, c.Password); err != nil {
		return nil, err
	}
	return cl, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
