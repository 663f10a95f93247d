package apu

// State is a snapshot of the channels and the frame sequencer. Buffered
// output samples are not part of it.
type State struct {
	Pulse1, Pulse2 Pulse
	Triangle       Triangle
	Noise          Noise
	DMC            DMC

	Cycle        uint64
	FrameCounter int
	FiveStep     bool
	IRQInhibit   bool
	FrameIRQ     bool
}

func (a *APU) SaveState() State {
	return State{
		Pulse1: a.pulse1, Pulse2: a.pulse2, Triangle: a.triangle, Noise: a.noise, DMC: a.dmc,
		Cycle: a.cycle, FrameCounter: a.frameCounter,
		FiveStep: a.fiveStep, IRQInhibit: a.irqInhibit, FrameIRQ: a.frameIRQ,
	}
}

func (a *APU) LoadState(s State) {
	a.pulse1, a.pulse2, a.triangle, a.noise, a.dmc = s.Pulse1, s.Pulse2, s.Triangle, s.Noise, s.DMC
	a.pulse1.onesComplement = true
	a.pulse2.onesComplement = false
	a.cycle, a.frameCounter = s.Cycle, s.FrameCounter
	a.fiveStep, a.irqInhibit, a.frameIRQ = s.FiveStep, s.IRQInhibit, s.FrameIRQ
}
