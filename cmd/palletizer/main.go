// Command palletizer is the administrative CLI for a registry: initialize
// one, publish a packaged crate from a local file, and yank/unyank
// published versions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/palletizer/registry/internal/config"
	"github.com/palletizer/registry/internal/registry"
)

var registryFlag = &cli.StringFlag{
	Name:    "registry",
	Aliases: []string{"r"},
	Value:   ".",
	Usage:   "root of the registry to work on",
}

func main() {
	cmd := &cli.Command{
		Name:  "palletizer",
		Usage: "administer a palletizer crate registry",
		Commands: []*cli.Command{
			initCommand(),
			addCommand(),
			yankCommand(),
			unyankCommand(),
			fsckCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "initialize a new registry",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root := cmd.Args().First()
			if root == "" {
				root = "."
			}
			_, err := registry.Init(root, config.Example())
			return err
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "publish a packaged crate file to the registry",
		ArgsUsage: "<crate-file>",
		Flags:     []cli.Flag{registryFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			crateFile := cmd.Args().First()
			if crateFile == "" {
				return fmt.Errorf("add: a crate file is required")
			}
			reg, err := registry.Open(cmd.String("registry"))
			if err != nil {
				return err
			}
			blob, err := os.ReadFile(crateFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", crateFile, err)
			}
			return reg.AddCrate(blob)
		},
	}
}

func yankCommand() *cli.Command {
	return &cli.Command{
		Name:      "yank",
		Usage:     "mark a crate version as yanked",
		ArgsUsage: "<name> <version>",
		Flags:     []cli.Flag{registryFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return yankOrUnyank(cmd, true)
		},
	}
}

func unyankCommand() *cli.Command {
	return &cli.Command{
		Name:      "unyank",
		Usage:     "clear a crate version's yanked flag",
		ArgsUsage: "<name> <version>",
		Flags:     []cli.Flag{registryFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return yankOrUnyank(cmd, false)
		},
	}
}

func yankOrUnyank(cmd *cli.Command, yank bool) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("expected <name> <version>")
	}
	name := cmd.Args().Get(0)
	version := cmd.Args().Get(1)

	reg, err := registry.Open(cmd.String("registry"))
	if err != nil {
		return err
	}
	if yank {
		_, err = reg.Yank(name, version)
	} else {
		_, err = reg.Unyank(name, version)
	}
	return err
}

func fsckCommand() *cli.Command {
	return &cli.Command{
		Name:  "fsck",
		Usage: "report crate blobs with no matching index entry",
		Flags: []cli.Flag{registryFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			reg, err := registry.Open(cmd.String("registry"))
			if err != nil {
				return err
			}
			orphans, err := reg.VerifyBlobs()
			if err != nil {
				return err
			}
			if len(orphans) == 0 {
				fmt.Println("no inconsistencies found")
				return nil
			}
			for _, path := range orphans {
				fmt.Printf("orphaned blob with no index entry: %s\n", path)
			}
			return fmt.Errorf("%d orphaned blob(s) found, repair administratively", len(orphans))
		},
	}
}
