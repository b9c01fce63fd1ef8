package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"orientia/backend/internal/database"
	"orientia/backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// readInput lee una línea de la consola.
func readInput(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readPassword lee una contraseña enmascarando la entrada.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

func main() {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("--- Orientia Setup ---")

	fmt.Println("\n--- Database Configuration ---")
	dbHost := readInput(reader, "Enter Database Host (e.g., localhost or 'db' if using docker-compose): ")
	dbPort := readInput(reader, "Enter Database Port (e.g., 5432): ")
	dbUser := readInput(reader, "Enter Database User: ")
	dbPassword, err := readPassword("Enter Database Password: ")
	if err != nil {
		log.Fatalf("Failed to read database password: %v", err)
	}
	dbName := readInput(reader, "Enter Database Name: ")
	dbSSLMode := readInput(reader, "Enter Database SSL Mode (e.g., disable, require): ")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode)

	fmt.Println("Connecting to database...")
	if err := database.ConnectDB(dsn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	fmt.Println("Successfully connected to the database.")

	fmt.Println("Applying migrations...")
	if err := database.MigrateDB(); err != nil {
		fmt.Printf("SQL migrations unavailable (%v); falling back to schema auto-migration.\n", err)
		if err := models.AutoMigrateDB(database.GetDB()); err != nil {
			log.Fatalf("Failed to migrate database schema: %v", err)
		}
	}
	fmt.Println("Database migrations completed successfully.")

	fmt.Println("\n--- Admin User Setup ---")
	adminName := readInput(reader, "Enter Admin User Name: ")
	adminEmail := strings.ToLower(readInput(reader, "Enter Admin User Email: "))
	adminPassword, err := readPassword("Enter Admin User Password: ")
	if err != nil {
		log.Fatalf("Failed to read admin password: %v", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), 12)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	// La cuenta de bootstrap nace verificada.
	now := time.Now()
	adminUser := models.User{
		Name:            adminName,
		Email:           adminEmail,
		PasswordHash:    string(hashedPassword),
		Role:            models.RoleAdmin,
		EmailVerifiedAt: &now,
	}

	if err := database.GetDB().Create(&adminUser).Error; err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	fmt.Printf("Admin user '%s' created successfully.\n", adminUser.Email)

	fmt.Println("\n--- Setup Complete ---")
	fmt.Println("Orientia initial setup is complete.")
}
