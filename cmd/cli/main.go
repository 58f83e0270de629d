package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/yourorg/stoplist/internal/config"
)

func main() {
	config.SetupLogging()

	app := &cli.App{
		Name:        "stoplist",
		Usage:       "Scrape Taipei e-bus stop lists into CSV",
		Description: "Drives a headless Chrome against ebus.gov.taipei and writes one CSV per route and direction",

		Commands: []*cli.Command{
			fetchCommand(),
			routesCommand(),
			batchCommand(),
			healthCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}
