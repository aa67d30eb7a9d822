package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/vedran77/partsmarket/internal/client"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/feed"
	"github.com/vedran77/partsmarket/internal/logging"
	"github.com/vedran77/partsmarket/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "partsmarket-chat",
		Usage: "message buyers and sellers on partsmarket from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   "http://localhost:8080",
				Usage:   "partsmarket API base URL",
				EnvVars: []string{"PARTSMARKET_API_URL"},
			},
			&cli.StringFlag{
				Name:    "session-file",
				Value:   defaultSessionPath(),
				Usage:   "where the signed-in session is kept",
				EnvVars: []string{"PARTSMARKET_SESSION"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logging.Setup(c.String("log-level"), true)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "create an account and sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "account-type", Value: domain.AccountTypePrivate},
					&cli.StringFlag{Name: "business-id"},
					&cli.StringFlag{Name: "company-name"},
				},
				Action: register,
			},
			{
				Name:  "login",
				Usage: "sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
				},
				Action: login,
			},
			{
				Name:   "logout",
				Usage:  "forget the saved session",
				Action: logout,
			},
			{
				Name:  "conversations",
				Usage: "list your conversations",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "search", Usage: "filter by the other participant's name"},
				},
				Action: conversations,
			},
			{
				Name:      "chat",
				Usage:     "open a conversation with another user",
				ArgsUsage: "<user-id>",
				Action:    chat,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "partsmarket-session.json"
	}
	return filepath.Join(dir, "partsmarket", "session.json")
}

func setup(c *cli.Context) (*client.Session, *client.API, error) {
	session := client.NewSession()
	if err := session.Load(c.String("session-file")); err != nil {
		return nil, nil, fmt.Errorf("loading session: %w", err)
	}
	return session, client.NewAPI(c.String("api-url"), session), nil
}

func requireSignIn(session *client.Session) error {
	if !session.SignedIn() {
		return errors.New("not signed in, run login first")
	}
	return nil
}

func optional(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

func register(c *cli.Context) error {
	session, api, err := setup(c)
	if err != nil {
		return err
	}
	user, err := api.Register(c.Context, service.RegisterInput{
		Email:       c.String("email"),
		Name:        c.String("name"),
		Password:    c.String("password"),
		AccountType: c.String("account-type"),
		BusinessID:  optional(c, "business-id"),
		CompanyName: optional(c, "company-name"),
	})
	if err != nil {
		return err
	}
	if err := session.Save(c.String("session-file")); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", service.Label(user), user.ID)
	return nil
}

func login(c *cli.Context) error {
	session, api, err := setup(c)
	if err != nil {
		return err
	}
	user, err := api.Login(c.Context, c.String("email"), c.String("password"))
	if err != nil {
		return err
	}
	if err := session.Save(c.String("session-file")); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", service.Label(user), user.ID)
	return nil
}

func logout(c *cli.Context) error {
	err := os.Remove(c.String("session-file"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func conversations(c *cli.Context) error {
	session, api, err := setup(c)
	if err != nil {
		return err
	}
	if err := requireSignIn(session); err != nil {
		return err
	}

	convs, err := api.ListConversations(c.Context, c.String("search"))
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}
	for _, conv := range convs {
		fmt.Printf("%s  %s\n", conv.Other(session.UserID()), conv.OtherUserName)
	}
	return nil
}

func chat(c *cli.Context) error {
	recipientID, err := uuid.Parse(c.Args().First())
	if err != nil {
		return fmt.Errorf("chat needs the other user's id: %w", err)
	}

	session, api, err := setup(c)
	if err != nil {
		return err
	}
	if err := requireSignIn(session); err != nil {
		return err
	}
	if recipientID == session.UserID() {
		return feed.ErrSelfMessage
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realtime := client.NewRealtime(c.String("api-url"), session)
	go func() {
		if err := realtime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("realtime disconnected")
		}
	}()

	f := feed.New(session, recipientID, api, realtime)
	defer f.Close()

	otherName, err := api.UserName(ctx, recipientID)
	if err != nil {
		log.Warn().Err(err).Msg("could not load name")
		otherName = "Unknown user"
	}
	out := newPrinter(os.Stdout, f, otherName)

	if err := f.Open(ctx); err != nil {
		return err
	}
	fmt.Printf("Chatting with %s. Type a message and press enter, Ctrl-D to leave.\n", otherName)
	out.flush()

	go func() {
		for range f.Latest() {
			out.flush()
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			f.SetDraft(line)
			if _, err := f.Send(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "not sent: %v\n", err)
				continue
			}
			out.flush()
		}
	}
}
