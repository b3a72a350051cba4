package main

import (
	"database/sql"
	"log"
	"os"
	"time"

	"spinwheel/internal/pkg/caching"

	"github.com/hiendaovinh/toolkit/pkg/db"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
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
		Name: "cronjob",
		Commands: []*cli.Command{
			commandCronjob(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandCronjob() *cli.Command {
	return &cli.Command{
		Name: "cron",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reset-now",
				Usage: "reset daily counters once before scheduling",
			},
		},
		Action: func(c *cli.Context) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			// nolint:errcheck
			defer logger.Sync()

			db, err := getDb()
			if err != nil {
				return err
			}

			redisCache, err := getRedis()
			if err != nil {
				return err
			}

			cache, err := caching.NewCacheRedis(redisCache, false)
			if err != nil {
				return err
			}

			location, err := time.LoadLocation(getTimezone())
			if err != nil {
				return err
			}

			cronRunner := cron.New(cron.WithLocation(location))

			resetJob := NewRewardResetJob(db, cache, logger.Named("reward-reset"))
			if err := resetJob.Start(c.Context, cronRunner); err != nil {
				return err
			}
			if c.Bool("reset-now") {
				resetJob.runDailyReset()
			}

			logger.Info("Start cronjob", zap.String("timezone", location.String()))
			cronRunner.Run()
			return nil
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

func getTimezone() string {
	if tz := os.Getenv("SPIN_TIMEZONE"); tz != "" {
		return tz
	}
	return "UTC"
}
