package main

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"spinwheel/internal/datastore"
	"spinwheel/internal/models"

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
		Name: "export",
		Commands: []*cli.Command{
			commandExportHistory(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var historyHeader = []string{"id", "attempt_id", "account_id", "reward_id", "reward_name", "reward_kind", "amount_credited", "credited_balance", "is_free_spin", "ip", "created_at"}

func commandExportHistory() *cli.Command {
	return &cli.Command{
		Name:  "export-history",
		Usage: "write spin history to csv",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "account",
				Usage: "only this account, 0 for all",
			},
			&cli.TimestampFlag{
				Name:   "since",
				Layout: "2006-01-02",
			},
			&cli.StringFlag{
				Name:  "output",
				Value: "./spin_history.csv",
			},
			&cli.IntFlag{
				Name:  "batch",
				Value: 500,
			},
		},
		Action: func(c *cli.Context) error {
			postgresDB := getDb()

			file, err := os.Create(c.String("output"))
			if err != nil {
				return err
			}
			defer file.Close()

			since := time.Time{}
			if ts := c.Timestamp("since"); ts != nil {
				since = *ts
			}

			ctx := c.Context
			accountID := c.Int64("account")
			batch := c.Int("batch")

			var lastID int64
			n, err := writeHistory(file, func() ([]models.SpinHistory, error) {
				entries, err := datastore.GetSpinHistoryAfter(ctx, postgresDB, accountID, since, lastID, batch)
				if err != nil {
					return nil, err
				}
				if len(entries) > 0 {
					lastID = entries[len(entries)-1].ID
					fmt.Println("exported up to", lastID)
				}
				return entries, nil
			})
			if err != nil {
				return err
			}

			fmt.Println("DONE", n, "entries")
			return nil
		},
	}
}

// writeHistory drains next until it returns an empty batch.
func writeHistory(w io.Writer, next func() ([]models.SpinHistory, error)) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(historyHeader); err != nil {
		return 0, err
	}

	total := 0
	for {
		entries, err := next()
		if err != nil {
			return total, err
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			err := writer.Write([]string{
				strconv.FormatInt(entry.ID, 10),
				entry.AttemptID,
				strconv.FormatInt(entry.AccountID, 10),
				strconv.FormatInt(entry.RewardID, 10),
				entry.RewardSnapshot.Name,
				string(entry.RewardSnapshot.Kind),
				strconv.FormatFloat(entry.AmountCredited, 'f', -1, 64),
				entry.CreditedBalance,
				strconv.FormatBool(entry.IsFreeSpin),
				entry.IP,
				entry.CreatedAt.UTC().Format(time.RFC3339),
			})
			if err != nil {
				return total, err
			}
		}
		total += len(entries)
	}

	writer.Flush()
	return total, writer.Error()
}

func getDb() *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(os.Getenv("DB_DSN")),
		pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
	))

	return bun.NewDB(sqldb, pgdialect.New())
}
