package apu

var noiseTimerTable = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

// Envelope is the decay unit shared by the pulse and noise channels.
type Envelope struct {
	Start   bool
	Divider byte
	Decay   byte
}

func (e *Envelope) clock(loop bool, period byte) {
	if e.Start {
		e.Start = false
		e.Decay = 15
		e.Divider = period
		return
	}
	if e.Divider > 0 {
		e.Divider--
		return
	}
	e.Divider = period
	if e.Decay > 0 {
		e.Decay--
	} else if loop {
		e.Decay = 15
	}
}

func (e *Envelope) volume(constant bool, volume byte) byte {
	if constant {
		return volume
	}
	return e.Decay
}

// Pulse is one of the two square wave channels.
type Pulse struct {
	Enabled        bool
	Duty           byte
	DutyStep       byte
	Halt           bool // also the envelope loop flag
	ConstantVolume bool
	Volume         byte // also the envelope period

	SweepEnabled bool
	SweepPeriod  byte
	SweepNegate  bool
	SweepShift   byte
	SweepReload  bool
	SweepDivider byte

	Timer        uint16
	TimerCounter uint16
	Length       byte
	Envelope     Envelope

	// The first channel negates with one's complement.
	onesComplement bool
}

func (p *Pulse) write(reg uint16, data byte) {
	switch reg {
	case 0:
		p.Duty = data >> 6
		p.Halt = data&0x20 != 0
		p.ConstantVolume = data&0x10 != 0
		p.Volume = data & 0x0F
	case 1:
		p.SweepEnabled = data&0x80 != 0
		p.SweepPeriod = data >> 4 & 0x07
		p.SweepNegate = data&0x08 != 0
		p.SweepShift = data & 0x07
		p.SweepReload = true
	case 2:
		p.Timer = p.Timer&0xFF00 | uint16(data)
	case 3:
		p.Timer = p.Timer&0x00FF | uint16(data&0x07)<<8
		if p.Enabled {
			p.Length = lengthCounterTable[data>>3]
		}
		p.DutyStep = 0
		p.Envelope.Start = true
	}
}

func (p *Pulse) setEnabled(enabled bool) {
	p.Enabled = enabled
	if !enabled {
		p.Length = 0
	}
}

func (p *Pulse) clockTimer() {
	if p.TimerCounter > 0 {
		p.TimerCounter--
		return
	}
	p.TimerCounter = p.Timer
	p.DutyStep = (p.DutyStep + 1) & 7
}

func (p *Pulse) clockLength() {
	if !p.Halt && p.Length > 0 {
		p.Length--
	}
}

func (p *Pulse) sweepTarget() int {
	change := int(p.Timer >> p.SweepShift)
	if !p.SweepNegate {
		return int(p.Timer) + change
	}
	if p.onesComplement {
		change++
	}
	return int(p.Timer) - change
}

func (p *Pulse) muted() bool {
	return p.Timer < 8 || p.sweepTarget() > 0x7FF
}

func (p *Pulse) clockSweep() {
	if p.SweepDivider == 0 && p.SweepEnabled && p.SweepShift > 0 && !p.muted() {
		if target := p.sweepTarget(); target >= 0 {
			p.Timer = uint16(target)
		}
	}
	if p.SweepDivider == 0 || p.SweepReload {
		p.SweepDivider = p.SweepPeriod
		p.SweepReload = false
	} else {
		p.SweepDivider--
	}
}

func (p *Pulse) output() byte {
	if !p.Enabled || p.Length == 0 || p.muted() {
		return 0
	}
	if dutyCycles[p.Duty][p.DutyStep] == 0 {
		return 0
	}
	return p.Envelope.volume(p.ConstantVolume, p.Volume)
}

// Triangle is the triangle wave channel.
type Triangle struct {
	Enabled      bool
	Halt         bool // also the linear counter control flag
	LinearLoad   byte
	Linear       byte
	LinearReload bool
	Timer        uint16
	TimerCounter uint16
	Step         byte
	Length       byte
}

func (t *Triangle) write(reg uint16, data byte) {
	switch reg {
	case 0:
		t.Halt = data&0x80 != 0
		t.LinearLoad = data & 0x7F
	case 2:
		t.Timer = t.Timer&0xFF00 | uint16(data)
	case 3:
		t.Timer = t.Timer&0x00FF | uint16(data&0x07)<<8
		if t.Enabled {
			t.Length = lengthCounterTable[data>>3]
		}
		t.LinearReload = true
	}
}

func (t *Triangle) setEnabled(enabled bool) {
	t.Enabled = enabled
	if !enabled {
		t.Length = 0
	}
}

func (t *Triangle) clockTimer() {
	if t.TimerCounter > 0 {
		t.TimerCounter--
		return
	}
	t.TimerCounter = t.Timer
	if t.Linear > 0 && t.Length > 0 {
		t.Step = (t.Step + 1) & 31
	}
}

func (t *Triangle) clockLinear() {
	if t.LinearReload {
		t.Linear = t.LinearLoad
	} else if t.Linear > 0 {
		t.Linear--
	}
	if !t.Halt {
		t.LinearReload = false
	}
}

func (t *Triangle) clockLength() {
	if !t.Halt && t.Length > 0 {
		t.Length--
	}
}

func (t *Triangle) output() byte {
	// Ultrasonic periods are silenced rather than aliased.
	if !t.Enabled || t.Timer < 2 {
		return 0
	}
	return triangleWaveform[t.Step]
}

// Noise is the pseudo-random noise channel.
type Noise struct {
	Enabled        bool
	Halt           bool
	ConstantVolume bool
	Volume         byte
	Mode           bool
	Period         byte
	TimerCounter   uint16
	Shift          uint16
	Length         byte
	Envelope       Envelope
}

func (n *Noise) write(reg uint16, data byte) {
	switch reg {
	case 0:
		n.Halt = data&0x20 != 0
		n.ConstantVolume = data&0x10 != 0
		n.Volume = data & 0x0F
	case 2:
		n.Mode = data&0x80 != 0
		n.Period = data & 0x0F
	case 3:
		if n.Enabled {
			n.Length = lengthCounterTable[data>>3]
		}
		n.Envelope.Start = true
	}
}

func (n *Noise) setEnabled(enabled bool) {
	n.Enabled = enabled
	if !enabled {
		n.Length = 0
	}
}

func (n *Noise) clockTimer() {
	if n.TimerCounter > 0 {
		n.TimerCounter--
		return
	}
	n.TimerCounter = noiseTimerTable[n.Period] - 1

	tap := uint16(1)
	if n.Mode {
		tap = 6
	}
	feedback := (n.Shift ^ n.Shift>>tap) & 1
	n.Shift = n.Shift>>1 | feedback<<14
}

func (n *Noise) clockLength() {
	if !n.Halt && n.Length > 0 {
		n.Length--
	}
}

func (n *Noise) output() byte {
	if !n.Enabled || n.Length == 0 || n.Shift&1 != 0 {
		return 0
	}
	return n.Envelope.volume(n.ConstantVolume, n.Volume)
}
