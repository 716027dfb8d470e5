// Command seeder applies db/schema.sql and loads sample agencies, donors and
// wishlist items for local development.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close(ctx)

	schema, err := os.ReadFile("db/schema.sql")
	if err != nil {
		log.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := conn.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Println("Schema applied")

	seedAgencies(ctx, conn)
	seedUsers(ctx, conn)
	seedItems(ctx, conn)

	log.Println("Seeding completed successfully!")
}

func seedAgencies(ctx context.Context, conn *pgx.Conn) {
	agencies := []struct {
		name, email string
	}{
		{"HopeAgency", "contact@hopeagency.org"},
		{"BrightStart", "hello@brightstart.org"},
	}
	for _, a := range agencies {
		_, err := conn.Exec(ctx, `
			INSERT INTO agencies (id, name, email) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET email = EXCLUDED.email
		`, uuid.NewString(), a.name, a.email)
		if err != nil {
			log.Fatalf("Failed to seed agency %s: %v", a.name, err)
		}
	}
	log.Printf("Seeded %d agencies", len(agencies))
}

func seedUsers(ctx context.Context, conn *pgx.Conn) {
	users := []struct {
		externalID, name, email string
	}{
		{"u1", "Ana Kovac", "ana@example.com"},
		{"u2", "Marko Novak", "marko@example.com"},
	}
	for _, u := range users {
		_, err := conn.Exec(ctx, `
			INSERT INTO users (id, external_id, name, email) VALUES ($1, $2, $3, $4)
			ON CONFLICT (external_id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
		`, uuid.NewString(), u.externalID, u.name, u.email)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.externalID, err)
		}
	}
	log.Printf("Seeded %d users", len(users))
}

func seedItems(ctx context.Context, conn *pgx.Conn) {
	items := []struct {
		externalID, name string
		priceCents       int64
		agencyName       string
	}{
		{"i9", "Winter jacket, kids size 128", 3250, "HopeAgency"},
		{"i10", "School backpack", 1800, "HopeAgency"},
		{"i11", "Baby crib", 9900, "BrightStart"},
	}
	for _, it := range items {
		_, err := conn.Exec(ctx, `
			INSERT INTO items (id, external_id, name, price_cents, currency, status, agency_id)
			SELECT $1, $2, $3, $4, 'eur', 'available', a.id FROM agencies a WHERE a.name = $5
			ON CONFLICT (external_id) DO NOTHING
		`, uuid.NewString(), it.externalID, it.name, it.priceCents, it.agencyName)
		if err != nil {
			log.Fatalf("Failed to seed item %s: %v", it.externalID, err)
		}
	}
	log.Printf("Seeded %d items", len(items))
}
