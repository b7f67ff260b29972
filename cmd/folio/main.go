package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	folio "github.com/eringen/folio"
	"github.com/eringen/folio/identity"
	"github.com/eringen/folio/logging"
	"github.com/eringen/folio/scaffold"
	"github.com/eringen/folio/views"
)

// version is set at build time via ldflags.
var version = "dev"

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := folio.LoadConfig(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(logging.Config{Mode: cfg.LogMode, Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := folio.New(cfg, views.Default(), folio.WithLogger(log))
	if err := app.Run(ctx); err != nil {
		log.Error("app run error", zap.Error(err))
		return err
	}
	return nil
}

func hashPassword(_ context.Context, cmd *cli.Command) error {
	password := cmd.Args().First()
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}
	hash, err := identity.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func initSite(_ context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		dir = "."
	}
	written, err := scaffold.Write(dir, scaffold.Data{
		SiteName: cmd.String("name"),
		SiteURL:  cmd.String("url"),
	})
	if err != nil {
		return err
	}
	for _, f := range written {
		fmt.Println("created", f)
	}
	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to an optional YAML config file",
		Sources: cli.EnvVars("FOLIO_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "folio",
		Usage:  "Portfolio site with live project and blog content",
		Flags:  []cli.Flag{configFlag},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Flags:  []cli.Flag{configFlag},
				Action: serve,
			},
			{
				Name:      "hash-password",
				Usage:     "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
				ArgsUsage: "[password]",
				Action:    hashPassword,
			},
			{
				Name:      "init",
				Usage:     "Write a starter config.yaml, .env.example and robots.txt",
				ArgsUsage: "[dir]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Value: "Folio", Usage: "Site name"},
					&cli.StringFlag{Name: "url", Value: "http://localhost:3000", Usage: "Public site URL"},
				},
				Action: initSite,
			},
			{
				Name:  "version",
				Usage: "Print the folio version",
				Action: func(context.Context, *cli.Command) error {
					fmt.Printf("folio %s\n", version)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
