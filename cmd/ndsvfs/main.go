// Command ndsvfs mounts an NDS cartridge image and either lists its
// contents, extracts a file from it, or serves it over HTTP/FTP.
//
// Usage:
//
//	ndsvfs [-config path] list
//	ndsvfs [-config path] extract <vfs-path> <output-file>
//	ndsvfs [-config path] serve
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/icrashstuff/ndsvfs/bytesource"
	"github.com/icrashstuff/ndsvfs/config"
	ftpserver "github.com/icrashstuff/ndsvfs/server/ftp"
	httpserver "github.com/icrashstuff/ndsvfs/server/http"
	"github.com/icrashstuff/ndsvfs/vfs"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the settings file")
	cartridgePath := flag.String("cartridge", "", "path to the .nds image, overrides the settings file")
	flag.Parse()

	settings := config.New(*configPath)
	if *cartridgePath != "" {
		settings.CartridgePath = *cartridgePath
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	mount, err := openMount(settings)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer mount.Close()

	switch flag.Arg(0) {
	case "list":
		runList(mount)
	case "extract":
		runExtract(mount, flag.Arg(1), flag.Arg(2))
	case "serve", "":
		runServe(mount, settings)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}

func openMount(settings *config.Settings) (*vfs.Mount, error) {
	f, err := os.Open(settings.CartridgePath)
	if err != nil {
		return nil, fmt.Errorf("opening cartridge: %w", err)
	}
	src := bytesource.FromReaderAt(f)
	m, err := vfs.Open(src, vfs.OpenOptions{CheckCRC: settings.CheckCRC, FNTMaxDepth: settings.FNTMaxDepth})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mounting cartridge: %w", err)
	}
	return m, nil
}

func runList(mount *vfs.Mount) {
	for _, e := range mount.Enumerate() {
		if e.IsDir {
			fmt.Printf("%s/\n", e.Path)
		} else {
			fmt.Printf("%10d  %s\n", e.Size, e.Path)
		}
	}
}

func runExtract(mount *vfs.Mount, vfsPath, outPath string) {
	if vfsPath == "" || outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: ndsvfs extract <vfs-path> <output-file>")
		os.Exit(1)
	}
	e, err := mount.Stat(vfsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	data, err := mount.Read(vfsPath, 0, int64(e.Size))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(mount *vfs.Mount, settings *config.Settings) {
	ftp, err := ftpserver.New(mount, settings)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	go ftp.Start()
	defer ftp.Stop()

	httpSrv := httpserver.New(mount, settings)
	if err := httpSrv.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
