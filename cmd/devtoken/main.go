// Command devtoken mints an access token for local development.  Tokens
// in production come from the identity provider; this tool signs with the
// same JWT_SECRET so the API can be exercised without one.
//
// Usage:
//
//	devtoken -user 42 -role Admin [-ttl 2h]
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/utils"
)

func main() {
	_ = godotenv.Load()

	defaultTTL := time.Hour
	if v, err := strconv.Atoi(os.Getenv("ACCESS_TOKEN_TTL_MIN")); err == nil && v > 0 {
		defaultTTL = time.Duration(v) * time.Minute
	}
	user := flag.Uint64("user", 0, "user id (sub claim)")
	roleFlag := flag.String("role", "Student", "Student, Professor or Admin")
	ttl := flag.Duration("ttl", defaultTTL, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fail("JWT_SECRET is not set")
	}
	if *user == 0 {
		fail("-user is required")
	}
	role, ok := model.ParseRole(*roleFlag)
	if !ok {
		fail(fmt.Sprintf("unknown role %q", *roleFlag))
	}
	tok, err := utils.NewAccessToken(secret, *user, role, *ttl)
	if err != nil {
		fail(err.Error())
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "devtoken:", msg)
	os.Exit(2)
}
