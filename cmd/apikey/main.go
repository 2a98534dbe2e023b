// Package main is a development utility that mints credentials for an
// existing user.
//
// In key mode it prints a raw API key once together with an INSERT statement
// that stores only its bcrypt hash and lookup prefix, so a local database can
// be seeded without going through the server. The key prefix comes from
// auth.api_keys.prefix.
//
// In token mode it looks the user up and prints a JWT signed with
// PORTAL_JWT_SECRET, valid for auth.token_ttl.
//
// Usage:
//
//	apikey <user-email> [key-name]
//	apikey token <user-email>
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/civicdata/portal-api/internal/auth"
	"github.com/civicdata/portal-api/internal/config"
	"github.com/civicdata/portal-api/internal/db"
	"github.com/civicdata/portal-api/internal/db/repositories"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if os.Args[1] == "token" {
		if len(os.Args) < 3 {
			usage()
		}
		issueToken(cfg, os.Args[2])
		return
	}

	name := "development"
	if len(os.Args) > 2 {
		name = os.Args[2]
	}
	generateKey(cfg, os.Args[1], name)
}

func usage() {
	log.Fatalf("usage: %s <user-email> [key-name] | %s token <user-email>", os.Args[0], os.Args[0])
}

func generateKey(cfg *config.Config, email, name string) {
	key, hash, displayPrefix, err := auth.GenerateAPIKey(cfg.Auth.APIKeys.Prefix)
	if err != nil {
		log.Fatal(err)
	}

	separator := strings.Repeat("=", 58)
	fmt.Println(separator)
	fmt.Println("API Key Generated")
	fmt.Println(separator)
	fmt.Printf("\nFull Key: %s\n", key)
	fmt.Printf("Display Prefix: %s\n\n", displayPrefix)
	fmt.Println(separator)
	fmt.Println("SQL:")
	fmt.Println(separator)
	fmt.Printf(`
INSERT INTO api_keys (user_id, name, key_prefix, key_hash)
SELECT id, %s, %s, %s FROM users WHERE email = %s;
`, quote(name), quote(displayPrefix), quote(hash), quote(email))
	fmt.Println()
	fmt.Println(separator)
	fmt.Printf("Header: %s: %s\n", cfg.Auth.APIKeys.Header, key)
	fmt.Println(separator)
}

func issueToken(cfg *config.Config, email string) {
	if err := auth.ValidateJWTSecret(); err != nil {
		log.Fatal(err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 1, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := repositories.NewUserRepository(database).GetUserByEmail(ctx, email)
	if err != nil {
		log.Fatalf("Failed to look up user: %v", err)
	}
	if user == nil {
		log.Fatalf("No user with email %s", email)
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Authorization: Bearer %s\n", token)
	fmt.Printf("Expires in: %s\n", cfg.Auth.TokenTTL)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
