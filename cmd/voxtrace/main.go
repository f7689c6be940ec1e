package main

import (
	"os"

	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "voxtrace"
	app.Usage = "build, inspect and preview voxel scenes"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log",
			Usage: "per module log levels, e.g. octree=debug,bvh=warning",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "generate",
			Usage: "voxelize the demo scene into an octree file",
			Description: `
Fill an octree with a ground plane, a water pool, random spheres and a
glowstone light, then save it. Emitters can optionally be collected into an
emitter grid file.`,
			ArgsUsage: "out.oct",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "depth, d", Value: 7, Usage: "octree depth, the scene is 2^depth voxels wide"},
				cli.StringFlag{Name: "impl", Value: "PACKED", Usage: "octree implementation"},
				cli.IntFlag{Name: "spheres", Value: 12, Usage: "number of random spheres"},
				cli.Int64Flag{Name: "seed", Value: 1, Usage: "random seed"},
				cli.IntFlag{Name: "workers", Value: 0, Usage: "voxelization workers, 0 uses every CPU"},
				cli.StringFlag{Name: "emitters", Usage: "also write the emitter grid to this file"},
				cli.IntFlag{Name: "cell-size", Value: 8, Usage: "emitter grid cell size"},
			},
			Action: generate,
		},
		{
			Name:      "info",
			Usage:     "print octree file statistics",
			ArgsUsage: "scene.oct",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "impl", Usage: "octree implementation used to load the file"},
				cli.BoolFlag{Name: "blocks", Usage: "count voxels per block type"},
			},
			Action: info,
		},
		{
			Name:      "convert",
			Usage:     "load an octree file with one implementation and save it again",
			ArgsUsage: "in.oct out.oct",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "impl", Value: "BIGPACKED", Usage: "target octree implementation"},
			},
			Action: convert,
		},
		{
			Name:      "preview",
			Usage:     "render a flat shaded preview of an octree file",
			ArgsUsage: "scene.oct",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "width", Value: 640, Usage: "frame width"},
				cli.IntFlag{Name: "height", Value: 480, Usage: "frame height"},
				cli.IntFlag{Name: "ss", Value: 1, Usage: "supersampling factor"},
				cli.IntFlag{Name: "workers", Value: 0, Usage: "render workers, 0 uses every CPU"},
				cli.StringFlag{Name: "eye", Usage: "camera position as x,y,z (default: corner of the scene)"},
				cli.StringFlag{Name: "look-at", Usage: "view center as x,y,z (default: centre of the scene)"},
				cli.Float64Flag{Name: "fovy", Value: 50, Usage: "vertical field of view in degrees"},
				cli.IntFlag{Name: "entities", Value: 0, Usage: "number of random sphere entities to add"},
				cli.StringFlag{Name: "builder", Value: "SAH", Usage: "BVH builder for the entities"},
				cli.StringFlag{Name: "out, o", Value: "preview.png", Usage: "image filename"},
			},
			Action: preview,
		},
		{
			Name:  "bvh",
			Usage: "build BVHs over random primitives and compare the builders",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "n", Value: 10000, Usage: "number of primitives"},
				cli.IntFlag{Name: "rays", Value: 100000, Usage: "number of rays traced per builder"},
				cli.Int64Flag{Name: "seed", Value: 1, Usage: "random seed"},
				cli.StringFlag{Name: "builder", Usage: "only run this builder"},
				cli.StringFlag{Name: "plot", Usage: "save a histogram of the leaf depths to this png"},
			},
			Action: bvhStats,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
