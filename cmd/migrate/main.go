package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strconv"

	"spinwheel/internal/datastore"
	"spinwheel/internal/models"
	"spinwheel/internal/services"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

func main() {
	app := &cli.App{
		Name: "migrate",
		Commands: []*cli.Command{
			commandMigration(),
			commandConfigMigration(),
			commandSeedRewards(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandMigration() *cli.Command {
	return &cli.Command{
		Name: "migrate",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableConfig(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableAccount(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableReward(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableSpinHistory(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			log.Println("Migration success")
			return nil
		},
	}
}

func commandConfigMigration() *cli.Command {
	return &cli.Command{
		Name:        "migrate-config",
		Description: "Insert default configs to db",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			configs := []models.Config{
				{Key: services.CONFIG_SPIN_CLAIM_ATTEMPTS, Value: strconv.Itoa(services.DEFAULT_SPIN_CLAIM_ATTEMPTS)},
				{Key: services.CONFIG_SPIN_TX_ATTEMPTS, Value: strconv.Itoa(services.DEFAULT_SPIN_TX_ATTEMPTS)},
				{Key: services.CONFIG_FREE_SPINS_PER_DAY, Value: strconv.Itoa(services.DEFAULT_FREE_SPINS_PER_DAY)},
				{Key: services.CONFIG_MAX_SPIN_REWARDS, Value: strconv.Itoa(services.DEFAULT_MAX_SPIN_REWARDS)},
				{Key: services.CONFIG_SPIN_RATE_LIMIT_PER_MINUTE, Value: strconv.Itoa(services.DEFAULT_SPIN_RATE_LIMIT_PER_MINUTE)},
				{Key: services.CONFIG_CRONJOB_TIME_DAILY_RESET, Value: services.DEFAULT_CRONJOB_TIME_DAILY_RESET},
				{Key: services.CONFIG_CRONJOB_TIME_MONTHLY_RESET, Value: services.DEFAULT_CRONJOB_TIME_MONTHLY_RESET},
			}

			// existing keys keep their values
			for _, config := range configs {
				err = datastore.InsertConfig(ctx, db, config)
				if err != nil {
					log.Println(err)
				}
			}

			log.Println("Migration success")
			return nil
		},
	}
}

func commandSeedRewards() *cli.Command {
	return &cli.Command{
		Name:        "seed-rewards",
		Description: "Insert or refresh the default wheel",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			for _, reward := range defaultRewards() {
				reward := reward
				err = datastore.UpsertRewardByName(ctx, db, &reward)
				if err != nil {
					log.Println(reward.Name, err)
					continue
				}
				log.Println("Seeded reward:", reward.ID, reward.Name)
			}

			return nil
		},
	}
}

func defaultRewards() []models.Reward {
	return []models.Reward{
		{
			Name:          "10 Credits",
			Kind:          models.RewardKindCredits,
			Value:         10,
			Weight:        40,
			WheelPosition: 0,
			IsActive:      true,
		},
		{
			Name:          "50 Credits",
			Kind:          models.RewardKindCredits,
			Value:         50,
			Weight:        15,
			WheelPosition: 1,
			IsActive:      true,
		},
		{
			Name:          "Mystery Item",
			Kind:          models.RewardKindItem,
			Payload:       map[string]interface{}{"sku": "mystery-1"},
			Weight:        10,
			WheelPosition: 2,
			DailyLimit:    5,
			IsActive:      true,
		},
		{
			Name:          "Jackpot",
			Kind:          models.RewardKindCredits,
			Value:         1000,
			Weight:        0.1,
			WheelPosition: 3,
			DailyLimit:    1,
			IsActive:      true,
		},
	}
}

func getDb() (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(os.Getenv("DB_DSN")),
		pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
	))

	db := bun.NewDB(sqldb, pgdialect.New())
	return db, nil
}
