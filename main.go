package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/scottjcrouch/ScootNES/bus"
	"github.com/scottjcrouch/ScootNES/config"
	"github.com/scottjcrouch/ScootNES/console"
	"github.com/scottjcrouch/ScootNES/display"
	"github.com/scottjcrouch/ScootNES/server"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] [rom.nes]\n", os.Args[0])
		fs.PrintDefaults()
	}
	cfg, err := config.Parse(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Statsview != "" {
		go func() {
			viewer.SetConfiguration(viewer.WithAddr(cfg.Statsview))
			statsview.New().Start()
		}()
		log.Printf("stats server available at http://%s/debug/statsview", cfg.Statsview)
	}

	b := bus.New()
	b.APU.SetSampleRate(cfg.Audio.SampleRate)
	c := console.New(b)
	c.SetVerbose(cfg.Verbose)

	if rom := fs.Arg(0); rom != "" {
		if err := c.LoadROM(rom); err != nil {
			log.Fatalf("Error loading ROM: %v", err)
		}
	}

	if cfg.Server.Enabled {
		srv := server.New()
		srv.Attach(c)
		if err := srv.Start(cfg.Server.Addr); err != nil {
			log.Printf("Failed to start gRPC server: %v", err)
		} else {
			defer srv.Stop()
		}
	}

	d, err := display.New(c, cfg)
	if err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowSize(d.Width(), d.Height())
	ebiten.SetWindowTitle("ScootNES")
	runErr := ebiten.RunGame(d)

	if err := d.Close(); err != nil {
		log.Printf("closing display: %v", err)
	}
	if err := c.Close(); err != nil {
		log.Printf("writing save RAM: %v", err)
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}
