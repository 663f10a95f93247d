package apu

import "sync"

// CPUClockRate is the NTSC CPU clock in Hz. The APU is clocked once per
// CPU cycle.
const CPUClockRate = 1789773.0

// DefaultSampleRate is the output rate used unless SetSampleRate is called.
const DefaultSampleRate = 44100

var lengthCounterTable = [...]byte{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

var dutyCycles = [4][8]byte{
	{0, 1, 0, 0, 0, 0, 0, 0}, // 12.5%
	{0, 1, 1, 0, 0, 0, 0, 0}, // 25%
	{0, 1, 1, 1, 1, 0, 0, 0}, // 50%
	{1, 0, 0, 1, 1, 1, 1, 1}, // 25% negated
}

var triangleWaveform = [32]byte{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// Frame sequencer steps, in APU cycles (every other CPU cycle).
const (
	quarterStep1 = 3729
	halfStep1    = 7457
	quarterStep3 = 11186
	fourStepEnd  = 14915
	fiveStepEnd  = 18641
)

// MemoryReader is the CPU memory view the DMC fetches samples through.
type MemoryReader interface {
	Read(addr uint16) byte
}

// APU represents the Audio Processing Unit. Register access and Clock
// belong to the emulation goroutine; ReadSamples may be called from the
// audio goroutine.
type APU struct {
	pulse1   Pulse
	pulse2   Pulse
	triangle Triangle
	noise    Noise
	dmc      DMC

	mem MemoryReader

	cycle        uint64
	frameCounter int
	fiveStep     bool
	irqInhibit   bool
	frameIRQ     bool

	mu          sync.Mutex
	sampleRate  float64
	sampleClock float64
	samples     []float32
}

// New creates a new APU instance.
func New() *APU {
	a := &APU{sampleRate: DefaultSampleRate}
	a.pulse1.onesComplement = true
	a.noise.Shift = 1
	return a
}

// ConnectBus gives the DMC access to CPU memory.
func (a *APU) ConnectBus(mem MemoryReader) {
	a.mem = mem
}

// SetSampleRate changes the output sample rate and drops anything
// already buffered.
func (a *APU) SetSampleRate(rate int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sampleRate = float64(rate)
	a.sampleClock = 0
	a.samples = a.samples[:0]
}

// SampleRate returns the output sample rate in Hz.
func (a *APU) SampleRate() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.sampleRate)
}

// Reset silences every channel and restarts the frame sequencer.
func (a *APU) Reset() {
	a.pulse1 = Pulse{onesComplement: true}
	a.pulse2 = Pulse{}
	a.triangle = Triangle{}
	a.noise = Noise{Shift: 1}
	a.dmc = DMC{}
	a.cycle = 0
	a.frameCounter = 0
	a.fiveStep, a.irqInhibit, a.frameIRQ = false, false, false
}

// IRQ reports whether the frame sequencer or the DMC is asserting the
// CPU's IRQ line.
func (a *APU) IRQ() bool {
	return a.frameIRQ || a.dmc.IRQ
}

// Clock performs one APU clock cycle.
func (a *APU) Clock() {
	a.triangle.clockTimer()
	a.noise.clockTimer()
	a.dmc.clock(a.mem)

	// Pulse timers and the frame sequencer run at half the CPU rate.
	if a.cycle%2 == 0 {
		a.pulse1.clockTimer()
		a.pulse2.clockTimer()
		a.clockFrameCounter()
	}

	a.mu.Lock()
	a.sampleClock += a.sampleRate / CPUClockRate
	if a.sampleClock >= 1 {
		a.sampleClock--
		a.push(a.output())
	}
	a.mu.Unlock()

	a.cycle++
}

func (a *APU) clockFrameCounter() {
	a.frameCounter++
	switch a.frameCounter {
	case quarterStep1, quarterStep3:
		a.clockQuarter()
	case halfStep1:
		a.clockQuarter()
		a.clockHalf()
	case fourStepEnd:
		if a.fiveStep {
			return
		}
		a.clockQuarter()
		a.clockHalf()
		if !a.irqInhibit {
			a.frameIRQ = true
		}
		a.frameCounter = 0
	case fiveStepEnd:
		a.clockQuarter()
		a.clockHalf()
		a.frameCounter = 0
	}
}

func (a *APU) clockQuarter() {
	a.pulse1.Envelope.clock(a.pulse1.Halt, a.pulse1.Volume)
	a.pulse2.Envelope.clock(a.pulse2.Halt, a.pulse2.Volume)
	a.triangle.clockLinear()
	a.noise.Envelope.clock(a.noise.Halt, a.noise.Volume)
}

func (a *APU) clockHalf() {
	a.pulse1.clockLength()
	a.pulse1.clockSweep()
	a.pulse2.clockLength()
	a.pulse2.clockSweep()
	a.triangle.clockLength()
	a.noise.clockLength()
}

// output returns the current mixed audio sample in [0, 1).
func (a *APU) output() float32 {
	p := a.pulse1.output() + a.pulse2.output()
	t := a.triangle.output()
	n := a.noise.output()
	d := a.dmc.output()

	// Linear approximation of the console's mixer
	pulseOut := 0.00752 * float32(p)
	tndOut := 0.00851*float32(t) + 0.00494*float32(n) + 0.00335*float32(d)
	return pulseOut + tndOut
}

// push appends a sample, dropping the oldest once a second of audio is
// queued so an undrained buffer cannot grow without bound.
func (a *APU) push(s float32) {
	if limit := int(a.sampleRate); len(a.samples) >= limit {
		n := copy(a.samples, a.samples[len(a.samples)-limit+1:])
		a.samples = a.samples[:n]
	}
	a.samples = append(a.samples, s)
}

// Buffered returns the number of samples waiting to be read.
func (a *APU) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// ReadSamples drains buffered samples into p as 16-bit little-endian
// stereo frames. It returns the number of bytes written, which is zero
// when nothing is buffered.
func (a *APU) ReadSamples(p []byte) (n int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	numSamples := len(p) / 4
	if numSamples > len(a.samples) {
		numSamples = len(a.samples)
	}
	for i := 0; i < numSamples; i++ {
		s := int16(a.samples[i] * 32767)
		p[n] = byte(s)
		p[n+1] = byte(s >> 8)
		p[n+2] = byte(s)
		p[n+3] = byte(s >> 8)
		n += 4
	}
	rest := copy(a.samples, a.samples[numSamples:])
	a.samples = a.samples[:rest]
	return n, nil
}

// CPURead handles CPU reads from the status register at 0x4015. Reading
// acknowledges the frame interrupt.
func (a *APU) CPURead(addr uint16) byte {
	if addr != 0x4015 {
		return 0
	}
	var data byte
	if a.pulse1.Length > 0 {
		data |= 0x01
	}
	if a.pulse2.Length > 0 {
		data |= 0x02
	}
	if a.triangle.Length > 0 {
		data |= 0x04
	}
	if a.noise.Length > 0 {
		data |= 0x08
	}
	if a.dmc.Remaining > 0 {
		data |= 0x10
	}
	if a.frameIRQ {
		data |= 0x40
	}
	if a.dmc.IRQ {
		data |= 0x80
	}
	a.frameIRQ = false
	return data
}

// CPUWrite handles CPU writes to the APU's registers.
func (a *APU) CPUWrite(addr uint16, data byte) {
	switch {
	case addr >= 0x4000 && addr <= 0x4003:
		a.pulse1.write(addr&3, data)
	case addr >= 0x4004 && addr <= 0x4007:
		a.pulse2.write(addr&3, data)
	case addr >= 0x4008 && addr <= 0x400B:
		a.triangle.write(addr&3, data)
	case addr >= 0x400C && addr <= 0x400F:
		a.noise.write(addr&3, data)
	case addr >= 0x4010 && addr <= 0x4013:
		a.dmc.write(addr&3, data)
	case addr == 0x4015:
		a.pulse1.setEnabled(data&0x01 != 0)
		a.pulse2.setEnabled(data&0x02 != 0)
		a.triangle.setEnabled(data&0x04 != 0)
		a.noise.setEnabled(data&0x08 != 0)
		a.dmc.setEnabled(data&0x10 != 0)
		a.dmc.IRQ = false
	case addr == 0x4017:
		a.fiveStep = data&0x80 != 0
		a.irqInhibit = data&0x40 != 0
		if a.irqInhibit {
			a.frameIRQ = false
		}
		a.frameCounter = 0
		if a.fiveStep {
			a.clockQuarter()
			a.clockHalf()
		}
	}
}
