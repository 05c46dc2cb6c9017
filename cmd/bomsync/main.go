package main

import (
	"os"

	zlog "github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/pkg/cli"
	"stackerbuild.io/bomsync/pkg/log"
)

func main() {
	log.SetLevel(log.InfoLevel)

	if err := cli.NewRootCmd().Execute(); err != nil {
		zlog.Error().Err(err).Msg("action failed")
		os.Exit(1)
	}
}
