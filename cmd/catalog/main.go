package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"spinwheel/internal/datastore"
	"spinwheel/internal/models"
	"spinwheel/internal/pkg/caching"
	"spinwheel/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/db"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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
		Name: "catalog",
		Commands: []*cli.Command{
			commandImport(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// rewardColumns are the recognised csv header names, in any order. Only name, kind and weight are required.
var rewardColumns = []string{"name", "kind", "value", "weight", "wheel_position", "daily_limit", "monthly_limit", "is_active", "icon_url"}

func commandImport() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "upsert rewards by name from a csv file with columns " + strings.Join(rewardColumns, ","),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "input",
				Value: "./rewards.csv",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "validate rows without writing",
			},
		},
		Action: func(c *cli.Context) error {
			file, err := os.Open(c.String("input"))
			if err != nil {
				return err
			}
			defer file.Close()

			rewards, err := readRewards(file)
			if err != nil {
				return err
			}
			if c.Bool("dry-run") {
				for _, reward := range rewards {
					fmt.Printf("ok: %s %s weight=%v\n", reward.Name, reward.Kind, reward.Weight)
				}
				return nil
			}

			postgresDB, err := getDb()
			if err != nil {
				return err
			}

			ctx := c.Context
			count, err := datastore.CountRewards(ctx, postgresDB)
			if err != nil {
				return err
			}
			maxRewards := maxSpinRewards(ctx, postgresDB)

			for _, reward := range rewards {
				reward := reward
				err := upsertReward(ctx, postgresDB, &reward, &count, maxRewards)
				if err != nil {
					log.Println("Error when import reward", reward.Name, err)
					continue
				}
				log.Println("Imported reward:", reward.ID, reward.Name)
			}

			dbRedis, err := getRedis()
			if err != nil {
				return err
			}
			cache, err := caching.NewCacheRedis(dbRedis, false)
			if err != nil {
				return err
			}
			return caching.Invalidate(ctx, cache, services.DBKeyActiveRewards())
		},
	}
}

func maxSpinRewards(ctx context.Context, postgresDB *bun.DB) int {
	config, err := datastore.GetConfigByKey(ctx, postgresDB, services.CONFIG_MAX_SPIN_REWARDS)
	if err != nil {
		return services.DEFAULT_MAX_SPIN_REWARDS
	}
	v, err := strconv.Atoi(config.Value)
	if err != nil {
		return services.DEFAULT_MAX_SPIN_REWARDS
	}
	return v
}

func upsertReward(ctx context.Context, postgresDB *bun.DB, reward *models.Reward, count *int, maxRewards int) error {
	var existing models.Reward
	err := postgresDB.NewSelect().Model(&existing).Column("id").Where("name = ?", reward.Name).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		if *count >= maxRewards {
			return services.ErrMaxRewardsReached
		}
		*count++
	} else if err != nil {
		return err
	}

	return datastore.UpsertRewardByName(ctx, postgresDB, reward)
}

// readRewards parses every row and fails on the first invalid one, so a bad file imports nothing.
func readRewards(r io.Reader) ([]models.Reward, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	for i, column := range header {
		index[strings.ToLower(strings.TrimSpace(column))] = i
	}
	for _, required := range []string{"name", "kind", "weight"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	rewards := []models.Reward{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		reward, err := parseRewardRecord(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rewards = append(rewards, *reward)
	}

	return rewards, nil
}

func parseRewardRecord(record []string, index map[string]int) (*models.Reward, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	input := models.RewardInput{}
	name := field("name")
	input.Name = &name
	kind := models.RewardKind(field("kind"))
	input.Kind = &kind

	floats := map[string]**float64{"value": &input.Value, "weight": &input.Weight}
	for column, target := range floats {
		raw := field(column)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", column, err)
		}
		*target = &v
	}

	ints := map[string]**int{"wheel_position": &input.WheelPosition, "daily_limit": &input.DailyLimit, "monthly_limit": &input.MonthlyLimit}
	for column, target := range ints {
		raw := field(column)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", column, err)
		}
		*target = &v
	}

	if raw := field("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("is_active: %w", err)
		}
		input.IsActive = &active
	}
	if raw := field("icon_url"); raw != "" {
		input.IconURL = &raw
	}

	reward := &models.Reward{IsActive: true}
	services.ApplyRewardInput(reward, &input)
	if err := services.ValidateReward(reward); err != nil {
		return nil, err
	}

	return reward, nil
}

func getDb() (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(os.Getenv("DB_DSN")),
		pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
	))

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func getRedis() (redis.UniversalClient, error) {
	clusterRedisCache := os.Getenv("CLUSTER_REDIS_CACHE")
	if clusterRedisCache != "" {
		clusterOpts, err := redis.ParseClusterURL(clusterRedisCache)
		if err != nil {
			return nil, err
		}
		return redis.NewClusterClient(clusterOpts), nil
	}

	return db.InitRedis(&db.RedisConfig{
		URL: os.Getenv("REDIS_CACHE"),
	})
}
