package main

import (
	"github.com/pkg/errors"
	"github.com/soypat/voxtrace/octree"
	"github.com/urfave/cli"
)

func convert(ctx *cli.Context) error {
	setupLogging(ctx)
	if ctx.NArg() != 2 {
		return errors.New("expected input and output file arguments")
	}
	in, out := ctx.Args().Get(0), ctx.Args().Get(1)
	o, err := octree.OpenFile(in, ctx.String("impl"))
	if err != nil {
		return errors.Wrapf(err, "loading %s", in)
	}
	if err := octree.SaveFile(out, o); err != nil {
		return errors.Wrapf(err, "saving %s", out)
	}
	logger.Noticef("converted %s to %s with %s (%d nodes)", in, out, o.ImplementationName(), o.NodeCount())
	return nil
}
