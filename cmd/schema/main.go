// Package main prints the JSON Schema of the YAML configuration.
package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"backtest-lab/internal/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "schema",
		Usage: "Print the configuration JSON Schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to this file instead of stdout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			data, err := config.SchemaJSON()
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if path := cmd.String("output"); path != "" {
				return os.WriteFile(path, data, 0o644)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
