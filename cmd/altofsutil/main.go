// Command altofsutil is a small flag-driven exerciser for package altofs:
// list a directory, dump a file as text, or run a consistency check
// against a disk image. It is not a full diagnostic front-end.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"altofs"
	"altofs/internal/version"
)

func main() {
	var (
		imagePath   string
		listDir     bool
		readName    string
		checkImage  bool
		readOnly    bool
		showVersion bool
	)

	flag.StringVar(&imagePath, "image", "", "Path to a .dsk or .dsk80 disk image")
	flag.BoolVar(&listDir, "list", false, "List the image's directory")
	flag.StringVar(&readName, "read", "", "Read and print the named file as text")
	flag.BoolVar(&checkImage, "check", false, "Run a consistency check and print any violations")
	flag.BoolVar(&readOnly, "ro", false, "Open the image read-only")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Get().String())
		return
	}
	if imagePath == "" {
		fmt.Fprintln(os.Stderr, "altofsutil: -image is required")
		os.Exit(2)
	}

	fs, err := altofs.Open(imagePath, altofs.OpenOptions{ReadOnly: readOnly})
	if err != nil {
		log.Fatalf("open %s: %v", imagePath, err)
	}
	defer fs.Close()

	if listDir {
		entries, err := fs.List()
		if err != nil {
			log.Fatalf("list: %v", err)
		}
		for _, e := range entries {
			fmt.Printf("%-40s leader=%d\n", e.Name, e.LeaderVDA)
		}
	}

	if readName != "" {
		f, err := fs.Open(readName)
		if err != nil {
			log.Fatalf("open %s: %v", readName, err)
		}
		s, err := f.ReadAsString()
		if err != nil {
			log.Fatalf("read %s: %v", readName, err)
		}
		fmt.Print(s)
	}

	if checkImage {
		report, err := fs.Check()
		if err != nil {
			log.Fatalf("check: %v", err)
		}
		if len(report.Violations) == 0 {
			fmt.Println("no violations found")
			return
		}
		for _, v := range report.Violations {
			fmt.Println(v.String())
		}
		os.Exit(1)
	}
}
