package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rayjob/cli/render"
	"github.com/justapithecus/rayjob/packaging"
)

// PackageCommand returns the package command with subcommands.
func PackageCommand() *cli.Command {
	return &cli.Command{
		Name:  "package",
		Usage: "Build, identify and upload working-directory packages",
		Subcommands: []*cli.Command{
			packageHashCommand(),
			packageURICommand(),
			packageCreateCommand(),
			packageExistsCommand(),
			packageUploadCommand(),
		},
	}
}

var backendFlag = &cli.StringFlag{
	Name:  "backend",
	Usage: "Package store: dashboard or s3 (overrides config)",
}

func packageHashCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "Print the content hash of a directory",
		ArgsUsage: "<dir>",
		Flags:     OutputFlags(),
		Action: func(c *cli.Context) error {
			return withPackaging(c, 1, func(r *render.Renderer, b *packaging.Builder) error {
				dir := c.Args().First()
				hash, err := b.HashDirectory(dir)
				if err != nil {
					return exitFor(err)
				}
				return r.Render(PackageResult{Path: dir, Hash: hash, URI: packaging.FormatURI(hash)})
			})
		},
	}
}

func packageURICommand() *cli.Command {
	return &cli.Command{
		Name:      "uri",
		Usage:     "Print the package URI of a directory or pre-built package file",
		ArgsUsage: "<path>",
		Flags:     OutputFlags(),
		Action: func(c *cli.Context) error {
			return withPackaging(c, 1, func(r *render.Renderer, b *packaging.Builder) error {
				path := c.Args().First()
				uri, err := uriFor(b, path)
				if err != nil {
					return exitFor(err)
				}
				return r.Render(PackageResult{Path: path, URI: uri})
			})
		},
	}
}

func packageCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Write a directory's package archive to a local file",
		ArgsUsage: "<dir> <archive.zip>",
		Flags:     OutputFlags(),
		Action: func(c *cli.Context) error {
			return withPackaging(c, 2, func(r *render.Renderer, b *packaging.Builder) error {
				dir, dest := c.Args().Get(0), c.Args().Get(1)
				uri, err := b.URIForDirectory(dir)
				if err != nil {
					return exitFor(err)
				}
				if err := b.CreatePackage(dir, dest); err != nil {
					return exitFor(err)
				}
				info, err := os.Stat(dest)
				if err != nil {
					return exitFor(err)
				}
				return r.Render(PackageResult{Path: dir, URI: uri, Archive: dest, Bytes: info.Size()})
			})
		},
	}
}

func packageExistsCommand() *cli.Command {
	return &cli.Command{
		Name:      "exists",
		Usage:     "Report whether a package URI is present in the store",
		ArgsUsage: "<uri>",
		Flags:     append(OutputFlags(), backendFlag),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			if err := rejectTUI(c); err != nil {
				return err
			}
			uri := c.Args().First()
			if c.NArg() != 1 {
				return cli.Exit("exists requires exactly one package URI", exitError)
			}
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer func() { _ = e.close() }()

			coord, err := e.coordinator(c.Context, c.String("backend"))
			if err != nil {
				return cli.Exit(err.Error(), exitError)
			}
			exists, err := coord.Exists(c.Context, uri)
			if err != nil {
				return exitFor(err)
			}
			return r.Render(PackageResult{URI: uri, Exists: &exists})
		},
	}
}

func packageUploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload a directory (if absent) or a pre-built package file",
		ArgsUsage: "<path>",
		Flags: append(OutputFlags(), backendFlag,
			&cli.BoolFlag{Name: "force", Usage: "Upload a directory even if its package exists"},
		),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			if err := rejectTUI(c); err != nil {
				return err
			}
			if c.NArg() != 1 {
				return cli.Exit("upload requires exactly one path", exitError)
			}
			path := c.Args().First()
			info, err := os.Stat(path)
			if err != nil {
				return cli.Exit(err.Error(), exitError)
			}

			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer func() { _ = e.close() }()

			coord, err := e.coordinator(c.Context, c.String("backend"))
			if err != nil {
				return cli.Exit(err.Error(), exitError)
			}

			before := e.metrics.Snapshot().UploadsPerformed
			var uri string
			switch {
			case !info.IsDir():
				uri, err = coord.UploadPackageFile(c.Context, path)
			case c.Bool("force"):
				uri, err = coord.UploadDirectory(c.Context, path)
			default:
				uri, err = coord.UploadDirectoryIfNeeded(c.Context, path)
			}
			if err != nil {
				return exitFor(err)
			}
			uploaded := e.metrics.Snapshot().UploadsPerformed > before
			return r.Render(PackageResult{Path: path, URI: uri, Uploaded: &uploaded})
		},
	}
}

// withPackaging runs a local-only package subcommand taking nargs paths.
func withPackaging(c *cli.Context, nargs int, fn func(*render.Renderer, *packaging.Builder) error) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := rejectTUI(c); err != nil {
		return err
	}
	if c.NArg() != nargs {
		return cli.Exit(c.Command.Name+" usage: "+c.Command.Name+" "+c.Command.ArgsUsage, exitError)
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer func() { _ = e.close() }()
	return fn(r, packaging.New(e.logger))
}

func uriFor(b *packaging.Builder, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return b.URIForDirectory(path)
	}
	return b.URIForPackage(path)
}
