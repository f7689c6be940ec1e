package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/octree"
	"github.com/urfave/cli"
)

func info(ctx *cli.Context) error {
	setupLogging(ctx)
	if ctx.NArg() != 1 {
		return errors.New("missing octree file argument")
	}
	path := ctx.Args().First()
	start := time.Now()
	o, err := octree.OpenFile(path, ctx.String("impl"))
	if err != nil {
		return err
	}
	loadTime := time.Since(start)
	digest, err := octree.Digest(o)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"File", path})
	table.Append([]string{"Implementation", o.ImplementationName()})
	table.Append([]string{"Depth", fmt.Sprintf("%d (%d³ voxels)", o.Depth(), 1<<o.Depth())})
	table.Append([]string{"Nodes", fmt.Sprintf("%d", o.NodeCount())})
	if ur, ok := o.Implementation().(octree.UsageReporter); ok {
		u := ur.Usage()
		table.Append([]string{"Slots", fmt.Sprintf("%d of %d allocated (limit %d)", u.Slots, u.Capacity, u.Limit)})
		table.Append([]string{"Free blocks", fmt.Sprintf("%d", u.FreeBlocks)})
	}
	table.Append([]string{"Digest", hex.EncodeToString(digest[:])})
	table.Append([]string{"Load time", loadTime.String()})
	table.Render()
	logger.Noticef("octree statistics\n%s", buf.String())

	if ctx.Bool("blocks") {
		logger.Noticef("block statistics\n%s", blockTable(o.View(), voxtrace.DefaultPalette()))
	}
	return nil
}

// blockTable counts the voxels and leaves of every block type.
func blockTable(view octree.View, palette *voxtrace.BlockPalette) string {
	type count struct{ leaves, voxels int64 }
	counts := map[int]*count{}
	view.Visit(func(leaf octree.Node, x, y, z, level int) {
		c, ok := counts[leaf.Type]
		if !ok {
			c = &count{}
			counts[leaf.Type] = c
		}
		c.leaves++
		c.voxels += 1 << (3 * level)
	})
	types := make([]int, 0, len(counts))
	for typ := range counts {
		types = append(types, typ)
	}
	sort.Ints(types)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Type", "Material", "Kind", "Leaves", "Voxels"})
	var total int64
	for _, typ := range types {
		m := palette.Material(typ)
		c := counts[typ]
		total += c.voxels
		table.Append([]string{
			fmt.Sprintf("%d", typ),
			m.Name,
			m.Kind.String(),
			fmt.Sprintf("%d", c.leaves),
			fmt.Sprintf("%d", c.voxels),
		})
	}
	table.SetFooter([]string{"", "", "", "TOTAL", fmt.Sprintf("%d", total)})
	table.Render()
	return buf.String()
}
