package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"spinwheel/internal/datastore"
	"spinwheel/internal/datastore/redis_store"
	"spinwheel/internal/models"
	"spinwheel/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/db"
	"github.com/hiendaovinh/toolkit/pkg/env"
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
		Name: "debugger",
		Commands: []*cli.Command{
			commandIssueToken(),
			commandShowAttempt(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandIssueToken() *cli.Command {
	return &cli.Command{
		Name:  "issue-token",
		Usage: "sign a bearer token for local testing",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "id",
				Required: true,
			},
			&cli.StringFlag{
				Name: "username",
			},
			&cli.StringFlag{
				Name:  "role",
				Value: models.ROLE_USER,
			},
		},
		Action: func(c *cli.Context) error {
			vs, err := env.EnvsRequired("JWT_SECRET")
			if err != nil {
				return err
			}

			authentication, err := services.NewAuthentication(vs["JWT_SECRET"])
			if err != nil {
				return err
			}

			token, err := authentication.CreateToken(&models.AccountFromAuth{
				ID:       c.Int64("id"),
				Username: c.String("username"),
				Role:     c.String("role"),
			})
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
}

func commandShowAttempt() *cli.Command {
	return &cli.Command{
		Name:  "show-attempt",
		Usage: "print a spin attempt from the replay cache, falling back to postgres",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "attempt",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			attemptID := c.String("attempt")

			dbRedis, err := getRedis()
			if err != nil {
				return err
			}

			entry, err := redis_store.GetSpinAttempt(ctx, dbRedis, attemptID)
			source := "redis"
			if errors.Is(err, redis.Nil) {
				dbPostgres, err := getDb()
				if err != nil {
					return err
				}

				entry, err = datastore.FindSpinHistoryByAttemptID(ctx, dbPostgres, attemptID)
				if err != nil {
					return err
				}
				source = "postgres"
			} else if err != nil {
				return err
			}

			b, _ := json.MarshalIndent(entry, "", "    ")
			fmt.Println(source)
			fmt.Println(string(b))
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
	clusterRedisDB := os.Getenv("CLUSTER_REDIS_DB")
	if clusterRedisDB != "" {
		clusterOpts, err := redis.ParseClusterURL(clusterRedisDB)
		if err != nil {
			return nil, err
		}
		return redis.NewClusterClient(clusterOpts), nil
	}

	return db.InitRedis(&db.RedisConfig{
		URL: os.Getenv("REDIS_DB"),
	})
}
