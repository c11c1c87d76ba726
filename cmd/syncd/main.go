package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/treesync/internal/config"
	"github.com/danmuck/treesync/internal/logging"
	"github.com/danmuck/treesync/internal/syncd"
)

func main() {
	path := flag.String("config", "syncd.toml", "path to the daemon config")
	initKind := flag.String("init", "", "write a config template (syncd|language) to -config and exit")
	validate := flag.Bool("validate", false, "validate -config and exit")
	force := flag.Bool("force", false, "overwrite an existing file with -init")
	flag.Parse()

	logging.ConfigureRuntime()
	if err := run(*path, *initKind, *validate, *force); err != nil {
		fmt.Fprintf(os.Stderr, "syncd: %v\n", err)
		os.Exit(1)
	}
}

func run(path, initKind string, validate, force bool) error {
	if initKind != "" {
		if err := config.WriteTemplate(path, initKind, force); err != nil {
			return err
		}
		fmt.Printf("wrote %s template to %s\n", initKind, path)
		return nil
	}
	cfg, err := config.LoadSyncdConfig(path)
	if err != nil {
		return err
	}
	if validate {
		if _, err := config.LoadLanguages(cfg.Languages); err != nil {
			return err
		}
		fmt.Printf("validated %s (%d streams)\n", path, len(cfg.Streams))
		return nil
	}
	svc, err := syncd.NewService(context.Background(), cfg)
	if err != nil {
		return err
	}
	return svc.Run()
}
