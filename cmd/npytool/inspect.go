package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/npyio/npy"
	"github.com/samcharles93/npyio/npz"
)

type fieldSummary struct {
	Label string `json:"label,omitempty"`
	DType string `json:"dtype"`
}

type arraySummary struct {
	Name     string         `json:"name,omitempty"`
	Shape    []int          `json:"shape"`
	Order    string         `json:"order"`
	DType    string         `json:"dtype,omitempty"`
	Fields   []fieldSummary `json:"fields,omitempty"`
	Elements int            `json:"elements"`
	ItemSize int            `json:"itemsize"`
	Bytes    int            `json:"bytes"`
}

type fileSummary struct {
	File    string         `json:"file"`
	Arrays  []arraySummary `json:"arrays"`
	Skipped []string       `json:"skipped,omitempty"`
}

func inspectCmd() *cli.Command {
	var (
		filePath string
		asJSON   bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Show the metadata of a .npy or .npz file",
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "path to .npy or .npz file",
				Destination: &filePath,
				Required:    true,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit machine-readable JSON instead of text",
				Destination: &asJSON,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			_, log := setupLogger(ctx, c, LoadConfig())

			summary, err := summarize(filePath)
			if err != nil {
				log.Error("inspect failed", "file", filePath, "error", err)
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			printSummary(summary)
			return nil
		},
	}
}

func summarize(path string) (*fileSummary, error) {
	out := &fileSummary{File: path}

	if strings.HasSuffix(path, ".npz") {
		a, err := npz.ReadFile(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = a.Close() }()

		names := make([]string, 0, len(a.Arrays))
		for name := range a.Arrays {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out.Arrays = append(out.Arrays, summarizeArray(name, a.Arrays[name]))
		}
		out.Skipped = a.Skipped
		return out, nil
	}

	arr, err := npy.Load(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = arr.Close() }()
	out.Arrays = append(out.Arrays, summarizeArray("", arr))
	return out, nil
}

func summarizeArray(name string, a *npy.Array) arraySummary {
	s := arraySummary{
		Name:     name,
		Shape:    a.Shape(),
		Order:    a.Order().String(),
		Elements: a.NumVals(),
		ItemSize: a.ItemSize(),
		Bytes:    a.NumBytes(),
	}
	fields := a.Fields()
	if len(fields) == 1 && fields[0].Label == "" {
		s.DType = fields[0].String()
		return s
	}
	for _, f := range fields {
		s.Fields = append(s.Fields, fieldSummary{
			Label: f.Label,
			DType: fmt.Sprintf("<%c%d", f.Tag, f.Size),
		})
	}
	return s
}

func printSummary(s *fileSummary) {
	fmt.Printf("File: %s\n", s.File)
	for _, a := range s.Arrays {
		if a.Name != "" {
			fmt.Printf("\n%s:\n", a.Name)
		}
		fmt.Printf("  shape:    %v\n", a.Shape)
		fmt.Printf("  order:    %s\n", a.Order)
		if a.DType != "" {
			fmt.Printf("  dtype:    %s\n", a.DType)
		}
		for _, f := range a.Fields {
			fmt.Printf("  field:    %-16s %s\n", f.Label, f.DType)
		}
		fmt.Printf("  elements: %d\n", a.Elements)
		fmt.Printf("  itemsize: %d\n", a.ItemSize)
		fmt.Printf("  bytes:    %d\n", a.Bytes)
	}
	for _, name := range s.Skipped {
		fmt.Printf("\n%s: (not a .npy entry, skipped)\n", name)
	}
}
