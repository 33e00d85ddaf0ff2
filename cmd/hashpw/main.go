// Command hashpw prints a bcrypt hash for seeding accounts, and with -create
// inserts the account directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/facility_triage/configs"
	"github.com/facility_triage/internal/models"
	"github.com/facility_triage/internal/repositories"
	"github.com/facility_triage/pkg/db"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	emailAddr := flag.String("email", "admin@campus.edu", "account email")
	password := flag.String("password", "", "plain-text password")
	role := flag.String("role", string(models.RoleAdmin), "student, staff, supervisor, maintenance or admin")
	name := flag.String("name", "", "display name")
	create := flag.Bool("create", false, "insert the account into the configured database")
	flag.Parse()

	if *password == "" {
		log.Fatal("-password is required")
	}
	if !models.IsValidRole(*role) {
		log.Fatalf("unknown role %q", *role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Printf("Email: %s\n", *emailAddr)
	fmt.Printf("Hashed Password: %s\n", string(hashedPassword))

	if !*create {
		return
	}
	configs.LoadConfig()
	db.InitDB(configs.AppConfig.DBDriver, configs.AppConfig.DBSource)
	defer db.CloseDB()

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(*emailAddr)),
		DisplayName:  *name,
		PasswordHash: string(hashedPassword),
		Role:         models.Role(*role),
	}
	if err := repositories.NewGormUserRepository(db.GetDB()).Create(context.Background(), user); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}
	fmt.Printf("Created %s account %s\n", user.Role, user.Email)
}
