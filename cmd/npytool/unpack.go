package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/npyio/npy"
	"github.com/samcharles93/npyio/npz"
)

func unpackCmd() *cli.Command {
	var (
		filePath string
		outDir   string
	)

	return &cli.Command{
		Name:  "unpack",
		Usage: "Extract the arrays of a .npz archive into .npy files",
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "path to the .npz archive",
				Destination: &filePath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "directory to write .npy files into",
				Value:       ".",
				Destination: &outDir,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			_, log := setupLogger(ctx, c, LoadConfig())

			a, err := npz.ReadFile(filePath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = a.Close() }()

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			for name, arr := range a.Arrays {
				dest := filepath.Join(outDir, name+".npy")
				if err := writeArray(dest, arr); err != nil {
					log.Error("unpack failed", "variable", name, "error", err)
					return cli.Exit(fmt.Sprintf("error: %s: %v", name, err), 1)
				}
				log.Info("extracted", "variable", name, "file", dest)
			}
			for _, name := range a.Skipped {
				log.Warn("skipped non-array entry", "entry", name)
			}
			return nil
		},
	}
}

func writeArray(path string, a *npy.Array) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := npy.WriteArray(f, a.Header(), rawSource(a.Raw(), a.ItemSize())); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
