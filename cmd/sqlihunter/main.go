package main

import (
	"flag"
	"fmt"
	"os"

	"sqlihunter/internal/app"
	"sqlihunter/internal/config"
	"sqlihunter/internal/logx"
)

const banner = `============================================
             sqlihunter
   triage de URLs históricas para SQLi
============================================`

func main() {
	cfg := config.ParseFlags()

	logx.SetVerbosity(cfg.Verbosity)
	fmt.Fprintln(os.Stderr, banner)

	if cfg.Domain == "" && cfg.ListPath == "" {
		fmt.Fprintln(os.Stderr, "uso: -d example.com | -l dominios.txt")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := app.Run(cfg); err != nil {
		logx.Errorf("%v", err)
		os.Exit(1)
	}
}
