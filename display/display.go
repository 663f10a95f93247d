// Package display is the ebiten front end: a window with the game screen,
// a menu bar, a controller HUD and an audio player.
package display

import (
	"errors"
	"fmt"
	"image/color"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sqweek/dialog"

	"github.com/scottjcrouch/ScootNES/config"
	"github.com/scottjcrouch/ScootNES/console"
	"github.com/scottjcrouch/ScootNES/ppu"
	"github.com/scottjcrouch/ScootNES/screenshot"
	"github.com/scottjcrouch/ScootNES/wavfile"
)

const (
	menuBarHeight = 50
	hudHeight     = 140
	screenTop     = menuBarHeight + 4
)

// soundStream feeds the audio player. The APU produces samples in step
// with emulation, so gaps are filled with silence rather than blocking.
type soundStream struct {
	console *console.Console

	mu  sync.Mutex
	wav *wavfile.Recorder // tee for F8 recordings
}

// swapWAV installs w as the recording target and returns the previous one.
func (s *soundStream) swapWAV(w *wavfile.Recorder) *wavfile.Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.wav
	s.wav = w
	return old
}

func (s *soundStream) Read(p []byte) (int, error) {
	n, err := s.console.ReadSamples(p)
	if err != nil {
		return n, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wav != nil && n > 0 {
		if _, err := s.wav.Write(p[:n]); err != nil {
			log.Printf("display: wav: %v", err)
		}
	}
	clear(p[n:])
	return len(p), nil
}

// Display represents the emulator's window.
type Display struct {
	console *console.Console
	cfg     *config.Config
	keys    [8]ebiten.Key
	scale   int

	audioPlayer *audio.Player
	sound       *soundStream

	resetBlinkTimer int
	message         string
	messageTimer    int

	recorder   *console.Recorder
	recordFile *os.File

	romLoadChan chan string

	frameImage     *ebiten.Image
	staticImage    *ebiten.Image
	staticPix      []byte
	scanlineImage  *ebiten.Image
	currentButtons [8]bool
}

// New creates a Display for c. Input recording starts immediately when
// the configuration names a record file.
func New(c *console.Console, cfg *config.Config) (*Display, error) {
	d := &Display{
		console:     c,
		cfg:         cfg,
		keys:        parseKeys(cfg.Input.Player1),
		scale:       cfg.Video.Scale,
		romLoadChan: make(chan string, 1),
		frameImage:  ebiten.NewImage(ppu.Width, ppu.Height),
		staticImage: ebiten.NewImage(ppu.Width, ppu.Height),
		staticPix:   make([]byte, ppu.Width*ppu.Height*4),
	}

	// Scanline overlay: a dark line every other row.
	d.scanlineImage = ebiten.NewImage(ppu.Width, ppu.Height)
	for y := 0; y < ppu.Height; y += 2 {
		vector.DrawFilledRect(d.scanlineImage, 0, float32(y), ppu.Width, 1, color.RGBA{0, 0, 0, 70}, false)
	}

	if cfg.Input.Record != "" {
		f, err := os.Create(cfg.Input.Record)
		if err != nil {
			return nil, fmt.Errorf("opening record file: %w", err)
		}
		d.recordFile = f
		d.recorder = console.NewRecorder(f)
	}

	if cfg.Audio.Enabled {
		d.sound = &soundStream{console: c}
		audioContext := audio.NewContext(c.SampleRate())
		player, err := audioContext.NewPlayer(d.sound)
		if err != nil {
			log.Printf("Error creating audio player: %v", err)
		} else {
			d.audioPlayer = player
			player.Play()
		}
	}
	return d, nil
}

func parseKeys(m config.KeyMapping) [8]ebiten.Key {
	defaults := config.Default().Input.Player1.Keys()
	var keys [8]ebiten.Key
	for i, name := range m.Keys() {
		if err := keys[i].UnmarshalText([]byte(name)); err != nil {
			log.Printf("display: %v, using %s", err, defaults[i])
			keys[i].UnmarshalText([]byte(defaults[i]))
		}
	}
	return keys
}

// Close stops any recordings in progress.
func (d *Display) Close() error {
	var errs []error
	if d.recorder != nil {
		errs = append(errs, d.recorder.Flush(), d.recordFile.Close())
	}
	if d.sound != nil {
		if w := d.sound.swapWAV(nil); w != nil {
			errs = append(errs, w.Close())
		}
	}
	return errors.Join(errs...)
}

func (d *Display) notify(format string, args ...any) {
	d.message = fmt.Sprintf(format, args...)
	d.messageTimer = 120
	log.Print(d.message)
}

func (d *Display) loadROM(path string) {
	if err := d.console.LoadROM(path); err != nil {
		d.notify("Error loading ROM: %v", err)
	}
}

func (d *Display) statePath() string {
	rom := filepath.Base(d.console.ROMPath())
	return filepath.Join(d.cfg.Paths.States, rom[:len(rom)-len(filepath.Ext(rom))]+".state")
}

func (d *Display) handleHotkeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		paused := !d.console.Paused()
		d.console.SetPaused(paused)
		if paused {
			d.notify("Paused")
		} else {
			d.notify("Resumed")
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyN) && d.console.Paused():
		d.console.RequestStep()
	case inpututil.IsKeyJustPressed(ebiten.KeyF5) && d.console.HasCartridge():
		if err := d.console.SaveState(d.statePath()); err != nil {
			d.notify("Save state failed: %v", err)
		} else {
			d.notify("Saved %s", d.statePath())
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyF9) && d.console.HasCartridge():
		if err := d.console.LoadState(d.statePath()); err != nil {
			d.notify("Load state failed: %v", err)
		} else {
			d.notify("Loaded %s", d.statePath())
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyF8):
		d.toggleWAV()
	case inpututil.IsKeyJustPressed(ebiten.KeyF12) && d.console.HasCartridge():
		name := screenshot.Name(d.cfg.Paths.Screenshots, d.console.ROMPath(), time.Now())
		if err := screenshot.Save(name, d.console.Frame(), d.scale); err != nil {
			d.notify("Screenshot failed: %v", err)
		} else {
			d.notify("Screenshot %s", name)
		}
	}
}

func (d *Display) toggleWAV() {
	if d.sound == nil {
		d.notify("Audio is disabled")
		return
	}
	if w := d.sound.swapWAV(nil); w != nil {
		if err := w.Close(); err != nil {
			d.notify("WAV recording failed: %v", err)
			return
		}
		d.notify("WAV recording stopped (%d frames)", w.Frames())
		return
	}
	name := filepath.Join(d.cfg.Paths.Recordings, time.Now().Format("scootnes-20060102-150405.wav"))
	w, err := wavfile.Create(name, d.console.SampleRate())
	if err != nil {
		d.notify("WAV recording failed: %v", err)
		return
	}
	d.sound.swapWAV(w)
	d.notify("Recording audio to %s", name)
}

// Update proceeds the game state.
// Update is called every tick (1/60 [s] by default).
func (d *Display) Update() error {
	// Check if a ROM was selected via the async dialog
	select {
	case filename := <-d.romLoadChan:
		d.loadROM(filename)
	default:
	}

	// Handle menu clicks
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		cx, cy := ebiten.CursorPosition()
		x, y := float32(cx), float32(cy)

		if y >= 5 && y <= 45 {
			switch {
			case x >= 60 && x <= 140: // POWER
				return ebiten.Termination
			case x >= 150 && x <= 230: // RESET
				d.console.Reset()
				d.resetBlinkTimer = 30
			case x >= 240 && x <= 320: // LOAD
				go func() {
					filename, err := dialog.File().Filter("iNES ROM", "nes").Load()
					if err != nil {
						if !errors.Is(err, dialog.ErrCancelled) {
							log.Println(err)
						}
						return
					}
					d.romLoadChan <- filename
				}()
			}
		}
	}

	if d.resetBlinkTimer > 0 {
		d.resetBlinkTimer--
	}
	if d.messageTimer > 0 {
		d.messageTimer--
	}

	d.handleHotkeys()

	var buttons [8]bool
	for i, k := range d.keys {
		buttons[i] = ebiten.IsKeyPressed(k)
	}
	d.console.SetButtons(0, buttons)
	d.currentButtons = d.console.Buttons(0)

	// Generate TV Static if no cartridge is loaded
	if !d.console.HasCartridge() {
		for i := 0; i < len(d.staticPix); i += 4 {
			val := byte(rand.Intn(256))
			d.staticPix[i] = val
			d.staticPix[i+1] = val
			d.staticPix[i+2] = val
			d.staticPix[i+3] = 255
		}
		d.staticImage.WritePixels(d.staticPix)
		return nil
	}

	if d.console.RunFrame() && d.recorder != nil {
		if err := d.recorder.Record(d.currentButtons); err != nil {
			log.Printf("display: recording: %v", err)
		}
	}
	return nil
}

// Draw draws the game screen.
// Draw is called every frame (typically 1/60[s] for 60Hz display).
func (d *Display) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{20, 20, 20, 255})

	var rawScreen *ebiten.Image
	if d.console.HasCartridge() {
		d.frameImage.WritePixels(d.console.GetFramePixels())
		if d.cfg.Video.Scanlines {
			d.frameImage.DrawImage(d.scanlineImage, nil)
		}
		rawScreen = d.frameImage
	} else {
		rawScreen = d.staticImage
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(d.scale), float64(d.scale))
	op.GeoM.Translate(0, screenTop)
	screen.DrawImage(rawScreen, op)

	if d.console.Paused() {
		ebitenutil.DebugPrintAt(screen, "PAUSED  (P resume, N step)", 8, screenTop+8)
	}
	if d.messageTimer > 0 {
		ebitenutil.DebugPrintAt(screen, d.message, 8, screenTop+ppu.Height*d.scale-20)
	}

	d.drawControllerHUD(screen)
	d.drawMenuBar(screen)
}

func (d *Display) drawMenuBar(screen *ebiten.Image) {
	width := float32(ppu.Width * d.scale)
	vector.DrawFilledRect(screen, 0, 0, width, menuBarHeight, color.RGBA{190, 190, 190, 255}, false)
	vector.DrawFilledRect(screen, 0, menuBarHeight, width, 4, color.RGBA{40, 40, 40, 255}, false)

	cx, cy := ebiten.CursorPosition()
	mouseX, mouseY := float32(cx), float32(cy)
	isMouseDown := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)

	// Power LED
	ledX, ledY := float32(30), float32(25)
	vector.DrawFilledRect(screen, ledX-10, ledY-10, 20, 20, color.RGBA{30, 30, 30, 255}, false)
	if d.resetBlinkTimer == 0 || (d.resetBlinkTimer/4)%2 == 0 {
		vector.DrawFilledCircle(screen, ledX, ledY, 8, color.RGBA{200, 0, 0, 80}, false)
		vector.DrawFilledCircle(screen, ledX, ledY, 5, color.RGBA{255, 0, 0, 180}, false)
		vector.DrawFilledCircle(screen, ledX, ledY, 3, color.RGBA{255, 100, 100, 255}, false)
	} else {
		vector.DrawFilledCircle(screen, ledX, ledY, 3, color.RGBA{100, 0, 0, 255}, false)
	}

	for _, b := range []struct {
		label string
		x     float32
	}{{"POWER", 60}, {"RESET", 150}, {"LOAD", 240}} {
		hover := mouseX >= b.x && mouseX <= b.x+80 && mouseY >= 5 && mouseY <= 45
		drawNESButton(screen, b.label, b.x, 5, 80, 40, hover, hover && isMouseDown)
	}

	logoText := "SCOOTNES"
	logoImg := ebiten.NewImage(len(logoText)*6, 16)
	ebitenutil.DebugPrintAt(logoImg, logoText, 0, 0)
	logOp := &ebiten.DrawImageOptions{}
	logOp.GeoM.Scale(2.5, 2.5)
	logOp.GeoM.Skew(-0.15, 0)
	logOp.GeoM.Translate(350, 4)
	logOp.ColorScale.ScaleWithColor(color.RGBA{220, 50, 50, 255})
	screen.DrawImage(logoImg, logOp)
}

func drawNESButton(screen *ebiten.Image, textStr string, x, y, w, h float32, isHovered, isPressed bool) {
	baseColor := color.RGBA{70, 70, 70, 255}
	lightColor := color.RGBA{120, 120, 120, 255}
	darkColor := color.RGBA{40, 40, 40, 255}
	if isHovered {
		baseColor = color.RGBA{85, 85, 85, 255}
		lightColor = color.RGBA{140, 140, 140, 255}
	}
	if isPressed {
		lightColor, darkColor = darkColor, lightColor
	}

	vector.DrawFilledRect(screen, x, y, w, h, baseColor, false)
	const border = 4
	vector.DrawFilledRect(screen, x, y, w, border, lightColor, false)
	vector.DrawFilledRect(screen, x, y, border, h, lightColor, false)
	vector.DrawFilledRect(screen, x, y+h-border, w, border, darkColor, false)
	vector.DrawFilledRect(screen, x+w-border, y, border, h, darkColor, false)

	textImg := ebiten.NewImage(len(textStr)*6, 16)
	ebitenutil.DebugPrintAt(textImg, textStr, 0, 0)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(2, 2)
	textX := x + (w-float32(len(textStr)*12))/2
	textY := y + (h-32)/2 + 4
	if isPressed {
		textX += 2
		textY += 2
	}
	op.GeoM.Translate(float64(textX), float64(textY))
	op.ColorScale.ScaleWithColor(color.RGBA{220, 50, 50, 255})
	screen.DrawImage(textImg, op)
}

// Layout returns the fixed logical screen size.
func (d *Display) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	return d.Width(), d.Height()
}

// Width is the logical window width.
func (d *Display) Width() int {
	return ppu.Width * d.scale
}

// Height is the logical window height.
func (d *Display) Height() int {
	return screenTop + ppu.Height*d.scale + hudHeight
}

// drawControllerHUD draws a controller below the game screen that lights
// up as buttons are pressed locally or remotely.
func (d *Display) drawControllerHUD(screen *ebiten.Image) {
	hudWidth, hudH := float32(300), float32(110)
	x := float32(d.Width())/2 - hudWidth/2
	y := float32(screenTop+ppu.Height*d.scale) + 15

	vector.DrawFilledRect(screen, x, y, hudWidth, hudH, color.RGBA{180, 180, 180, 255}, false)
	vector.DrawFilledRect(screen, x+20, y+hudH/2-10, hudWidth-40, 20, color.RGBA{30, 30, 30, 255}, false)

	dpadX, dpadY := x+55, y+55
	dpadColor := color.RGBA{20, 20, 20, 255}
	hlColor := color.RGBA{130, 130, 130, 255}
	vector.DrawFilledRect(screen, dpadX-12, dpadY-35, 24, 70, dpadColor, false)
	vector.DrawFilledRect(screen, dpadX-35, dpadY-12, 70, 24, dpadColor, false)

	b := d.currentButtons
	if b[4] {
		vector.DrawFilledRect(screen, dpadX-12, dpadY-35, 24, 25, hlColor, false)
	}
	if b[5] {
		vector.DrawFilledRect(screen, dpadX-12, dpadY+10, 24, 25, hlColor, false)
	}
	if b[6] {
		vector.DrawFilledRect(screen, dpadX-35, dpadY-12, 25, 24, hlColor, false)
	}
	if b[7] {
		vector.DrawFilledRect(screen, dpadX+10, dpadY-12, 25, 24, hlColor, false)
	}

	selColor, startColor := color.RGBA{30, 30, 30, 255}, color.RGBA{30, 30, 30, 255}
	if b[2] {
		selColor = hlColor
	}
	if b[3] {
		startColor = hlColor
	}
	vector.DrawFilledRect(screen, x+120, y+60, 35, 12, selColor, false)
	vector.DrawFilledRect(screen, x+170, y+60, 35, 12, startColor, false)

	bColor, aColor := color.RGBA{200, 0, 0, 255}, color.RGBA{200, 0, 0, 255}
	btnHlColor := color.RGBA{255, 100, 100, 255}
	if b[1] {
		bColor = btnHlColor
	}
	if b[0] {
		aColor = btnHlColor
	}
	vector.DrawFilledCircle(screen, x+230, y+70, 18, bColor, false)
	vector.DrawFilledCircle(screen, x+275, y+60, 18, aColor, false)
}
