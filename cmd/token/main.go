// Command token mints a signed access token for local development.
// Production tokens come from the external auth provider.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"ppplay-api/internal/auth"
	"ppplay-api/internal/config"
)

func main() {
	userID := flag.Uint("user", 1, "user id")
	email := flag.String("email", "", "email carried in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "-email is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	auth.InitJWT(cfg.Auth.JWTSecret)

	token, err := auth.GenerateToken(*userID, *email, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
