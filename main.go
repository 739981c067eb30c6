package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/gatekeeper/internal/auth"
	"github.com/mrlokans/gatekeeper/internal/config"
	"github.com/mrlokans/gatekeeper/internal/crypto"
	"github.com/mrlokans/gatekeeper/internal/database"
	"github.com/mrlokans/gatekeeper/internal/database/users"
	"github.com/mrlokans/gatekeeper/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "create-user":
		if err := createUser(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "generate-key":
		key, err := crypto.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)

	case "version":
		fmt.Printf("gatekeeper %s (%s)\n", Version, Commit)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fmt.Fprintln(os.Stderr, "Commands: serve, create-user, generate-key, version")
		os.Exit(1)
	}
}

// createUser provisions an activated credential record for a guard.
func createUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	guardName := fs.String("guard", "", "guard whose table receives the user (defaults to the configured default guard)")
	email := fs.String("email", "", "email address (required)")
	username := fs.String("username", "", "display name")
	password := fs.String("password", "", "plaintext password, hashed before storage (required)")
	activated := fs.Bool("activated", true, "whether the account may use remember-me login")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" || *password == "" {
		return fmt.Errorf("both -email and -password are required")
	}

	cfg := config.NewConfig()

	name := *guardName
	if name == "" {
		name = cfg.Auth.DefaultGuard
	}
	guard, ok := cfg.Auth.Guards[name]
	if !ok {
		return fmt.Errorf("%w: %q", auth.ErrGuardNotDefined, name)
	}

	hash, err := auth.HashPassword(*password, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	db, err := database.NewDatabase(cfg.Database.Path, []string{guard.Model})
	if err != nil {
		return err
	}

	repo := users.NewRepository(db.DB, guard.Model)
	user, err := repo.CreateUser(context.Background(), *email, *username, hash, *activated)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s #%d (%s)\n", name, user.ID, user.Email)
	return nil
}
