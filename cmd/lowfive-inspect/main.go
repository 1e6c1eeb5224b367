// Command lowfive-inspect walks an HDF5 file written through the passthru
// backend (diskhdf5) and prints its group/dataset/attribute tree, the same
// diagnostic need the teacher's dump_hdf5 served against raw bytes, aimed
// here at the domain model instead (see DESIGN.md).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/diatomic/lowfive/diskhdf5"
)

func main() {
	showAttrs := flag.Bool("attrs", false, "print each object's attributes")
	showValues := flag.Bool("values", false, "print dataset values for numeric datasets")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: lowfive-inspect [-attrs] [-values] <file.h5>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	f, err := diskhdf5.Open(args[0])
	if err != nil {
		log.Fatalf("lowfive-inspect: open %s: %v", args[0], err)
	}
	defer f.Close()

	fmt.Printf("%s (superblock v%d)\n", args[0], f.SuperblockVersion())
	f.Walk(func(path string, obj diskhdf5.Object) {
		printObject(path, obj, *showAttrs, *showValues)
	})
}

func printObject(path string, obj diskhdf5.Object, showAttrs, showValues bool) {
	switch o := obj.(type) {
	case *diskhdf5.Group:
		fmt.Printf("%s  (group)\n", path)
		if showAttrs {
			printGroupAttributes(path, o)
		}
	case *diskhdf5.Dataset:
		info, err := o.Info()
		if err != nil {
			fmt.Printf("%s  (dataset, info error: %v)\n", path, err)
			return
		}
		fmt.Printf("%s  (dataset) %s\n", path, info)
		if showAttrs {
			printDatasetAttributes(path, o)
		}
		if showValues {
			printValues(path, o)
		}
	default:
		fmt.Printf("%s  (unknown object %T)\n", path, obj)
	}
}

// printGroupAttributes and printDatasetAttributes are separate (rather
// than sharing one helper over a common interface) because the value
// returned from Attributes() is a slice of diskhdf5/internal/core's
// unexported-path Attribute type: usable here via field/method access,
// but not nameable in a shared interface method signature from outside
// the diskhdf5 module tree.
func printGroupAttributes(path string, g *diskhdf5.Group) {
	attrs, err := g.Attributes()
	if err != nil {
		fmt.Printf("    %s: list attributes: %v\n", path, err)
		return
	}
	for _, attr := range attrs {
		v, err := attr.ReadValue()
		if err != nil {
			fmt.Printf("    @%s: %v\n", attr.Name, err)
			continue
		}
		fmt.Printf("    @%s = %v\n", attr.Name, v)
	}
}

func printDatasetAttributes(path string, d *diskhdf5.Dataset) {
	attrs, err := d.Attributes()
	if err != nil {
		fmt.Printf("    %s: list attributes: %v\n", path, err)
		return
	}
	for _, attr := range attrs {
		v, err := attr.ReadValue()
		if err != nil {
			fmt.Printf("    @%s: %v\n", attr.Name, err)
			continue
		}
		fmt.Printf("    @%s = %v\n", attr.Name, v)
	}
}

func printValues(path string, d *diskhdf5.Dataset) {
	vals, err := d.Read()
	if err != nil {
		if strs, serr := d.ReadStrings(); serr == nil {
			fmt.Printf("    %s values: %v\n", path, strs)
			return
		}
		fmt.Printf("    %s values: %v\n", path, err)
		return
	}
	fmt.Printf("    %s values: %v\n", path, vals)
}
