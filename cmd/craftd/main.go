// Command craftd runs a craftd Minecraft Java Edition 1.20.1 (protocol 763)
// server: load config, wire the server, serve until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tholin/craftd/internal/config"
	"github.com/tholin/craftd/internal/server"
)

func main() {
	configPath := flag.String("config", "craftd.json", "path to the JSON configuration file")
	worldDir := flag.String("world-dir", "world", "directory holding region files")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "craftd: loading config: %v\n", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, *worldDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "craftd: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "craftd: %v\n", err)
		srv.Stop()
		os.Exit(1)
	}
	srv.Stop()
}
