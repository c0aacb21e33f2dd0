package cmd

import (
	"fmt"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/render"
	"github.com/justapithecus/rawzeo/policy"
	"github.com/justapithecus/rawzeo/record"
	"github.com/justapithecus/rawzeo/zeo"
)

// ProfileSummary is one row of list profiles.
type ProfileSummary struct {
	Name        string `json:"name"`
	Marker      string `json:"marker"`
	HeaderBytes int    `json:"header_bytes"`
	MaxFrame    int    `json:"max_frame"`
	MaxPayload  int    `json:"max_payload"`
	Checksum    string `json:"checksum"`
	Endian      string `json:"endian"`
	Tags        int    `json:"tags"`
}

// TagBinding is one row of list tags.
type TagBinding struct {
	Tag       string      `json:"tag"`
	Kind      record.Kind `json:"kind"`
	Droppable bool        `json:"droppable"`
}

// ListCommand returns the list command with subcommands.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List built-in protocol profiles and tag bindings",
		Subcommands: []*cli.Command{
			listProfilesCommand(),
			listTagsCommand(),
		},
	}
}

func listProfilesCommand() *cli.Command {
	return &cli.Command{
		Name:   "profiles",
		Usage:  "List protocol profiles",
		Flags:  ReadOnlyFlags(),
		Action: listProfilesAction,
	}
}

func listProfilesAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	var out []ProfileSummary
	for _, name := range zeo.Names() {
		p, err := zeo.Lookup(name)
		if err != nil {
			return err
		}
		out = append(out, ProfileSummary{
			Name:        p.Name,
			Marker:      fmt.Sprintf("% X", p.Layout.Marker),
			HeaderBytes: p.Layout.HeaderLen(),
			MaxFrame:    p.Layout.MaxFrameSize(),
			MaxPayload:  p.Layout.MaxPayload,
			Checksum:    string(p.Layout.Checksum),
			Endian:      p.Layout.Endian.String(),
			Tags:        len(p.Tags),
		})
	}
	return r.Render(out)
}

func listTagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List the tag bindings of a profile",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "profile", Usage: "Protocol profile", Value: "zeo"},
		),
		Action: listTagsAction,
	}
}

func listTagsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	p, err := zeo.Lookup(c.String("profile"))
	if err != nil {
		return configExit(err)
	}

	tags := make([]uint8, 0, len(p.Tags))
	for tag := range p.Tags {
		tags = append(tags, tag)
	}
	slices.Sort(tags)

	out := make([]TagBinding, 0, len(tags))
	for _, tag := range tags {
		kind := p.Tags[tag]
		out = append(out, TagBinding{
			Tag:       fmt.Sprintf("0x%02X", tag),
			Kind:      kind,
			Droppable: policy.IsDroppable(kind),
		})
	}
	return r.Render(out)
}
