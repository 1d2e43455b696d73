package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/npyio/npy"
	"github.com/samcharles93/npyio/npz"
)

func packCmd() *cli.Command {
	var (
		outPath string
		store   bool
	)

	return &cli.Command{
		Name:      "pack",
		Usage:     "Bundle .npy files into a .npz archive",
		ArgsUsage: "<file.npy> [file.npy ...]",
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "path of the .npz archive to write",
				Destination: &outPath,
				Required:    true,
			},
			&cli.BoolFlag{
				Name:        "store",
				Usage:       "store entries uncompressed",
				Destination: &store,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			_, log := setupLogger(ctx, c, cfg)
			applyPackConfig(c, cfg, &store)

			if c.NArg() == 0 {
				return cli.Exit("error: no input files", 2)
			}

			// Write through a temp path so a failed pack never leaves a
			// truncated archive at the destination.
			tmpPath := fmt.Sprintf("%s.pack-%s", outPath, uuid.NewString())
			w, err := npz.Create(tmpPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if store {
				w.Method = zip.Store
			}
			fail := func(msg string) cli.ExitCoder {
				_ = os.Remove(tmpPath)
				return cli.Exit(msg, 1)
			}

			for _, path := range c.Args().Slice() {
				name := strings.TrimSuffix(filepath.Base(path), ".npy")
				if err := packOne(w, name, path); err != nil {
					_ = w.Close()
					log.Error("pack failed", "file", path, "error", err)
					return fail(fmt.Sprintf("error: %s: %v", path, err))
				}
				log.Info("packed", "variable", name, "file", path)
			}

			if err := w.Close(); err != nil {
				return fail(fmt.Sprintf("error: %v", err))
			}
			if err := os.Rename(tmpPath, outPath); err != nil {
				return fail(fmt.Sprintf("error: %v", err))
			}
			log.Info("archive written", "path", outPath, "arrays", c.NArg())
			return nil
		},
	}
}

// packOne streams one .npy file into the archive without loading its
// payload: the source pulls record-sized chunks straight off the file.
func packOne(w *npz.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	h, _, err := npy.ReadHeader(f)
	if err != nil {
		return err
	}
	src := npy.FuncSource(func(dst []byte) error {
		_, err := io.ReadFull(f, dst)
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	})
	return w.AddArray(name, h, src)
}

// rawSource yields stride-sized chunks of an in-memory payload.
func rawSource(data []byte, stride int) npy.Source {
	pos := 0
	return npy.FuncSource(func(dst []byte) error {
		if pos >= len(data) {
			return io.EOF
		}
		copy(dst, data[pos:pos+stride])
		pos += stride
		return nil
	})
}
