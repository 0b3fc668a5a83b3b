package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/openpledge/sponsorships/internal/app/userstore"
	"github.com/openpledge/sponsorships/pkg/logger"
)

// useradm manages the flat-file account store used by the HTTP API's basic
// auth. Usage:
//
//	useradm -file users.txt add <username> <password> [-admin]
//	useradm -file users.txt check <username> <password>
func main() {
	_ = godotenv.Load()

	file := flag.String("file", envOr("USERS_FILE_PATH", "users.txt"), "path to the user file")
	admin := flag.Bool("admin", false, "grant the admin flag on add")
	flag.Parse()

	log := logger.NewDefault("useradm")

	args := flag.Args()
	if len(args) != 3 {
		usage()
	}
	command, username, password := args[0], args[1], args[2]

	store, err := userstore.Open(*file, log)
	if err != nil {
		log.WithError(err).Error("open user store")
		os.Exit(1)
	}

	switch command {
	case "add":
		if err := store.Register(username, password, *admin); err != nil {
			log.WithError(err).Error("register user")
			os.Exit(1)
		}
		fmt.Printf("user %s added\n", username)
	case "check":
		user, err := store.Authenticate(username, password)
		if err != nil {
			fmt.Println("invalid credentials")
			os.Exit(1)
		}
		fmt.Printf("ok (admin=%t)\n", user.Admin)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: useradm [-file users.txt] [-admin] add|check <username> <password>")
	os.Exit(2)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
