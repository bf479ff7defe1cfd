package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"tally/internal/auth"
)

func main() {
	_ = godotenv.Load()

	sub := flag.String("sub", "", "owner id (random uuid when empty)")
	email := flag.String("email", "", "email shown in the dashboard header")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		log.Fatalf("set AUTH_JWT_SECRET")
	}

	id := *sub
	if id == "" {
		id = uuid.NewString()
	}

	token, err := auth.New(secret, "").Issue(auth.Identity{ID: id, Email: *email}, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "owner %s, expires %s\n", id, time.Now().Add(*ttl).Format(time.RFC3339))
	fmt.Println(token)
}
