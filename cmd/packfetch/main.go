package main

import (
	"flag"
	"log/slog"
	"os"

	get "github.com/hashicorp/go-getter"
)

func main() {
	var (
		src = flag.String("src", "", "world pack source (URL, git::, s3:: or local path)")
		out = flag.String("o", "./pack", "output dir path")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *src == "" {
		log.Error("source required")
		os.Exit(2)
	}
	if *out == "" {
		log.Error("output dir path required")
		os.Exit(2)
	}

	if err := os.RemoveAll(*out); err != nil {
		log.Error("clear output", "path", *out, "error", err)
		os.Exit(1)
	}

	log.Info("start downloading world pack", "src", *src, "dst", *out)
	if err := get.Get(*out, *src); err != nil {
		log.Error("download world pack", "error", err)
		os.Exit(1)
	}
	log.Info("done downloading world pack", "dst", *out)
}
