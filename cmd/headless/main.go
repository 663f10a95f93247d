// Command headless runs a ROM without a window for a fixed number of
// frames, optionally replaying an input script, and writes the final
// screen, the pattern tables and the audio to files.
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"

	"golang.org/x/image/draw"

	"github.com/scottjcrouch/ScootNES/bus"
	"github.com/scottjcrouch/ScootNES/config"
	"github.com/scottjcrouch/ScootNES/console"
	"github.com/scottjcrouch/ScootNES/screenshot"
	"github.com/scottjcrouch/ScootNES/wavfile"
)

type options struct {
	frames   int
	png      string
	patterns string
	wav      string
	script   string
	state    string
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	var opts options
	fs.IntVar(&opts.frames, "frames", 600, "frames to run")
	fs.StringVar(&opts.png, "png", "", "write the last frame to this PNG file")
	fs.StringVar(&opts.patterns, "patterns", "", "write both pattern tables to this PNG file")
	fs.StringVar(&opts.wav, "wav", "", "record audio to this WAV file")
	fs.StringVar(&opts.script, "script", "", "replay this input script on controller 1")
	fs.StringVar(&opts.state, "load-state", "", "start from this save state")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] rom.nes\n", os.Args[0])
		fs.PrintDefaults()
	}

	cfg, err := config.Parse(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	if err := run(fs.Arg(0), cfg, opts); err != nil {
		log.Fatal(err)
	}
}

func run(rom string, cfg *config.Config, opts options) error {
	b := bus.New()
	b.APU.SetSampleRate(cfg.Audio.SampleRate)
	c := console.New(b)
	c.SetVerbose(cfg.Verbose)
	defer c.Close()

	if err := c.LoadROM(rom); err != nil {
		return err
	}
	if opts.state != "" {
		if err := c.LoadState(opts.state); err != nil {
			return fmt.Errorf("loading state: %w", err)
		}
	}

	var input []console.ScriptStep
	if opts.script != "" {
		f, err := os.Open(opts.script)
		if err != nil {
			return err
		}
		input, err = console.ParseScript(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", opts.script, err)
		}
	}

	var rec *wavfile.Recorder
	if opts.wav != "" {
		var err error
		if rec, err = wavfile.Create(opts.wav, c.SampleRate()); err != nil {
			return err
		}
	}

	discard := make([]byte, 4096)
	for frame := 0; frame < opts.frames; frame++ {
		if len(input) > 0 {
			c.SetButtons(0, input[0].Buttons)
			if input[0].Frames--; input[0].Frames == 0 {
				input = input[1:]
			}
		} else {
			c.SetButtons(0, [8]bool{})
		}
		c.RunFrame()

		if rec != nil {
			if err := rec.Capture(c); err != nil {
				return err
			}
		} else {
			for n, _ := c.ReadSamples(discard); n > 0; n, _ = c.ReadSamples(discard) {
			}
		}
	}

	if rec != nil {
		if err := rec.Close(); err != nil {
			return err
		}
		log.Printf("wrote %d audio frames to %s", rec.Frames(), opts.wav)
	}
	if opts.png != "" {
		if err := screenshot.Save(opts.png, c.Frame(), cfg.Video.Scale); err != nil {
			return err
		}
		log.Printf("wrote %s", opts.png)
	}
	if opts.patterns != "" {
		if err := screenshot.Save(opts.patterns, patternSheet(c), cfg.Video.Scale); err != nil {
			return err
		}
		log.Printf("wrote %s", opts.patterns)
	}

	st := c.GetCPUState()
	log.Printf("ran %d frames, PC:%04X CYC:%d halted:%v", opts.frames, st.PC, st.Cycles, st.Halted)
	return nil
}

// patternSheet places both pattern tables side by side using the first
// background palette.
func patternSheet(c *console.Console) *image.RGBA {
	sheet := image.NewRGBA(image.Rect(0, 0, 256, 128))
	for i := 0; i < 2; i++ {
		table := c.PatternTable(i, 0)
		draw.Draw(sheet, image.Rect(i*128, 0, i*128+128, 128), table, image.Point{}, draw.Src)
	}
	return sheet
}
