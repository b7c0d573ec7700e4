// Command apkedit is a small CLI front end over the apkedit library: read an
// APK, apply one manifest edit, write the result back out.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/go-apkedit/apkedit"
	"github.com/go-apkedit/apkedit/manifest"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: apkedit <add-activity|add-provider> [flags]")
	flag.PrintDefaults()
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "add-activity":
		err = runAddActivity(os.Args[2:])
	case "add-provider":
		err = runAddProvider(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "apkedit:", err)
		os.Exit(1)
	}
}

func runAddActivity(args []string) error {
	fs := flag.NewFlagSet("add-activity", flag.ExitOnError)
	in := fs.String("apk", "", "path to the source APK")
	out := fs.String("out", "", "path to write the edited APK")
	class := fs.String("class", "", "fully-qualified activity class name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" || *class == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag")
	}

	return editManifest(*in, *out, func(m *manifest.Manifest) error {
		return m.AddActivity(*class)
	})
}

func runAddProvider(args []string) error {
	fs := flag.NewFlagSet("add-provider", flag.ExitOnError)
	in := fs.String("apk", "", "path to the source APK")
	out := fs.String("out", "", "path to write the edited APK")
	class := fs.String("class", "", "fully-qualified provider class name")
	authorities := fs.String("authorities", "", "content provider authorities string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" || *class == "" || *authorities == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag")
	}

	return editManifest(*in, *out, func(m *manifest.Manifest) error {
		return m.AddProvider(*class, *authorities)
	})
}

func editManifest(inPath, outPath string, mutate func(*manifest.Manifest) error) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inPath, err)
	}

	apk, err := apkedit.Open(data)
	if err != nil {
		return fmt.Errorf("open %s: %w", inPath, err)
	}

	doc, err := apk.DecodeManifest()
	if err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}

	if err := mutate(doc); err != nil {
		return fmt.Errorf("edit manifest: %w", err)
	}
	apk.SetManifest(doc.Bytes())

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	if err := apk.Save(f); err != nil {
		return fmt.Errorf("save %s: %w", outPath, err)
	}

	info, err := f.Stat()
	if err == nil {
		log.Info().Msgf("wrote %d bytes to %s", info.Size(), outPath)
	}
	return nil
}
