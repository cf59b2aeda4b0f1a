package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/havenapp/whisper-server/internal/database"
	"github.com/havenapp/whisper-server/internal/repository"
	"github.com/havenapp/whisper-server/internal/util"
)

// Issues a bearer token for a user and stores its hash as a session row.
// Intended for local development and operator access; production sessions
// come from the identity provider.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/issue-token.go <user-id> [ttl-hours]\n")
		os.Exit(1)
	}

	userID := os.Args[1]
	ttl := 24 * time.Hour
	if len(os.Args) > 2 {
		hours, err := time.ParseDuration(os.Args[2] + "h")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid ttl-hours: %v\n", err)
			os.Exit(1)
		}
		ttl = hours
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintf(os.Stderr, "Error: DATABASE_URL is not set\n")
		os.Exit(1)
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	token, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sessionRepo := repository.NewSessionRepository(db.DB)
	session, err := sessionRepo.Create(context.Background(), userID, util.HashToken(token), time.Now().Add(ttl))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("token:   %s\n", token)
	fmt.Printf("userId:  %s\n", session.UserID)
	fmt.Printf("expires: %s\n", session.ExpiresAt.Format(time.RFC3339))
}
