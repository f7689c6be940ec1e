package main

import (
	"strings"

	"github.com/soypat/voxtrace/log"
	"github.com/urfave/cli"
)

var logger = log.New("voxtrace")

func setupLogging(ctx *cli.Context) {
	log.SetLevel(log.Notice)

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}

	if spec := ctx.GlobalString("log"); spec != "" {
		if err := log.Configure(spec); err != nil {
			logger.Warningf("ignoring -log %q: %v (modules: %s)", spec, err, strings.Join(log.Modules(), ", "))
		}
	}
}
