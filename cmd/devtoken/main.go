// Command devtoken mints an access token for local testing.  The secret
// comes from -secret or JWT_SECRET (a .env file is read when present).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/utils"
)

func main() {
	_ = godotenv.Load()

	email := flag.String("email", "", "subject email (required)")
	role := flag.String("role", model.RoleStudent, "student, instructor or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret")
	flag.Parse()

	if *email == "" || *secret == "" {
		flag.Usage()
		os.Exit(2)
	}
	switch *role {
	case model.RoleStudent, model.RoleInstructor, model.RoleAdmin:
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	tok, err := utils.NewAccessToken(*secret, *email, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
