package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samcharles93/npyio/npy"
	"github.com/samcharles93/npyio/npz"
)

func main() {
	var (
		showData = flag.Int("data", 8, "number of leading elements to print per array (0 to skip, -1 for all)")
		mapped   = flag.Bool("mmap", false, "memory-map .npy payloads instead of reading them")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: npyinspect [--data N] [--mmap] <path.npy|path.npz>")
		os.Exit(2)
	}

	path := flag.Arg(0)
	var err error
	if strings.HasSuffix(path, ".npz") {
		err = inspectArchive(path, *showData)
	} else {
		err = inspectFile(path, *showData, *mapped)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func inspectFile(path string, showData int, mapped bool) error {
	var (
		a   *npy.Array
		err error
	)
	if mapped {
		a, err = npy.LoadMapped(path)
	} else {
		a, err = npy.Load(path)
	}
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fmt.Printf("File: %s\n", path)
	printArray("", a)
	if showData != 0 {
		printData("  ", a, showData)
	}
	return nil
}

func inspectArchive(path string, showData int) error {
	a, err := npz.ReadFile(path)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fmt.Printf("Archive: %s | arrays=%d\n", path, len(a.Arrays))
	for _, name := range sortedNames(a.Arrays) {
		arr := a.Arrays[name]
		fmt.Printf("\n%s:\n", name)
		printArray("  ", arr)
		if showData != 0 {
			printData("    ", arr, showData)
		}
	}
	for _, name := range a.Skipped {
		fmt.Printf("\n%s: (not a .npy entry, skipped)\n", name)
	}
	return nil
}

func sortedNames(arrays map[string]*npy.Array) []string {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printArray(indent string, a *npy.Array) {
	fmt.Printf("%sshape=%s order=%s itemsize=%d elements=%d bytes=%d\n",
		indent, formatShape(a.Shape()), a.Order(), a.ItemSize(), a.NumVals(), a.NumBytes())
	fields := a.Fields()
	if len(fields) == 1 && fields[0].Label == "" {
		fmt.Printf("%sdtype=%s\n", indent, fields[0])
		return
	}
	fmt.Printf("%sfields:\n", indent)
	for _, f := range fields {
		fmt.Printf("%s  %s\n", indent, f)
	}
}

// printData dumps the leading elements of each field as raw hex words.
// Decoding into Go values would need the caller to pick types; for a
// format inspector the exact stored bytes are the more useful view.
func printData(indent string, a *npy.Array, n int) {
	count := a.NumVals()
	if n >= 0 && n < count {
		count = n
	}
	i := 0
	for r := range a.Records() {
		if i >= count {
			break
		}
		parts := make([]string, 0, len(a.Fields()))
		for k := range len(a.Fields()) {
			parts = append(parts, fmt.Sprintf("%x", r.Bytes(k)))
		}
		fmt.Printf("%s[%d] %s\n", indent, i, strings.Join(parts, " "))
		i++
	}
	if count < a.NumVals() {
		fmt.Printf("%s... (%d more)\n", indent, a.NumVals()-count)
	}
}

func formatShape(shape []int) string {
	if len(shape) == 0 {
		return "()"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "(" + strings.Join(parts, ",") + ")"
}
