package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/expertbooking/backend/internal/adapters/database"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	"github.com/zatekoja/expertbooking/backend/pkg/config"
)

func main() {
	migrationsDir := flag.String("migrations", "migrations", "directory of .sql files to apply before seeding")
	skipMigrate := flag.Bool("skip-migrate", false, "seed without applying migrations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("expert-booking-seed", cfg.Environment)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if !*skipMigrate {
		if err := applyMigrations(ctx, pgClient, *migrationsDir); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				wallet_transactions,
				wallets,
				proposals,
				appointments,
				webhook_events,
				providers
			CASCADE
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	weekdays := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	experts := []entities.Provider{
		{Name: "Dr. Asha Rao", Email: "asha.rao@example.com", SessionFee: 150000, Timezone: "Asia/Kolkata",
			AvailableDays: weekdays, TimeSlots: []string{"09:00-10:00", "10:00-11:00", "14:00-15:00"}},
		{Name: "Vikram Mehta", Email: "vikram.mehta@example.com", SessionFee: 80000, Timezone: "Asia/Kolkata",
			AvailableDays: []string{"Saturday", "Sunday"}, TimeSlots: []string{"11:00-12:00", "12:00-13:00"}},
		{Name: "Priya Nair", Email: "priya.nair@example.com", SessionFee: 120000, Timezone: "Asia/Kolkata",
			AvailableDays: weekdays, TimeSlots: []string{"18:00-19:00", "19:00-20:00"}},
	}

	db := goqu.New("postgres", pgClient.DB())
	wallets := database.NewWalletAdapter(pgClient)

	for i := range experts {
		expert := &experts[i]
		now := time.Now().UTC()
		expert.ID = uuid.New().String()
		expert.UserID = uuid.New().String()
		expert.IsAvailable = true
		expert.Currency = cfg.Payment.Currency

		query, args, err := db.Insert("providers").Rows(goqu.Record{
			"id":             expert.ID,
			"user_id":        expert.UserID,
			"name":           expert.Name,
			"email":          expert.Email,
			"is_available":   expert.IsAvailable,
			"available_days": pq.Array(expert.AvailableDays),
			"time_slots":     pq.Array(expert.TimeSlots),
			"session_fee":    expert.SessionFee,
			"currency":       expert.Currency,
			"timezone":       expert.Timezone,
			"created_at":     now,
			"updated_at":     now,
		}).ToSQL()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build provider insert")
		}
		if _, err := pgClient.DB().ExecContext(ctx, query, args...); err != nil {
			log.Error().Err(err).Str("name", expert.Name).Msg("failed to create provider")
			continue
		}

		if _, err := wallets.GetOrCreate(ctx, expert.ID, expert.Currency); err != nil {
			log.Error().Err(err).Str("provider_id", expert.ID).Msg("failed to create wallet")
			continue
		}

		log.Info().
			Str("provider_id", expert.ID).
			Str("user_id", expert.UserID).
			Str("name", expert.Name).
			Msg("seeded provider")
	}

	log.Info().Int("providers", len(experts)).Msg("seeding completed")
}

// applyMigrations runs every .sql file in dir in lexical order. The schema
// files are idempotent, so re-running is safe.
func applyMigrations(ctx context.Context, client *postgres.Client, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		sql, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if _, err := client.DB().ExecContext(ctx, string(sql)); err != nil {
			return err
		}
		log.Info().Str("file", file).Msg("applied migration")
	}
	return nil
}
