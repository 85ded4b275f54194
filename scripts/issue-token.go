package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/duoquiz/duo-server/internal/auth"
	"github.com/duoquiz/duo-server/internal/util"
)

type tokenConfig struct {
	JWTSecret   string `env:"JWT_SECRET,required"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"168"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: JWT_SECRET=... go run scripts/issue-token.go <user-id>\n")
		os.Exit(1)
	}

	userID := os.Args[1]
	if !util.IsValidUUID(userID) {
		fmt.Fprintf(os.Stderr, "Error: %q is not a valid user id\n", userID)
		os.Exit(1)
	}

	var cfg tokenConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour).Issue(userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
