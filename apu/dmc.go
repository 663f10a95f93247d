package apu

var dmcRateTable = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

// DMC is the delta modulation channel. It plays 1-bit delta samples
// fetched from CPU memory at 0xC000-0xFFFF.
type DMC struct {
	IRQEnabled bool
	Loop       bool
	Rate       byte

	TimerCounter uint16

	SampleAddress  uint16
	SampleLength   uint16
	CurrentAddress uint16
	Remaining      uint16

	Output     byte
	ShiftReg   byte
	BitsLeft   byte
	Buffer     byte
	BufferFull bool
	Silence    bool

	IRQ bool
}

func (d *DMC) write(reg uint16, data byte) {
	switch reg {
	case 0:
		d.IRQEnabled = data&0x80 != 0
		d.Loop = data&0x40 != 0
		d.Rate = data & 0x0F
		if !d.IRQEnabled {
			d.IRQ = false
		}
	case 1:
		d.Output = data & 0x7F
	case 2:
		d.SampleAddress = 0xC000 + uint16(data)*64
	case 3:
		d.SampleLength = uint16(data)*16 + 1
	}
}

func (d *DMC) setEnabled(enabled bool) {
	if !enabled {
		d.Remaining = 0
		return
	}
	if d.Remaining == 0 {
		d.restart()
	}
}

func (d *DMC) restart() {
	d.CurrentAddress = d.SampleAddress
	d.Remaining = d.SampleLength
}

func (d *DMC) clock(mem MemoryReader) {
	if !d.BufferFull && d.Remaining > 0 && mem != nil {
		d.fetch(mem)
	}

	if d.TimerCounter > 0 {
		d.TimerCounter--
		return
	}
	d.TimerCounter = dmcRateTable[d.Rate] - 1

	if !d.Silence {
		if d.ShiftReg&1 != 0 {
			if d.Output <= 125 {
				d.Output += 2
			}
		} else if d.Output >= 2 {
			d.Output -= 2
		}
	}
	d.ShiftReg >>= 1

	if d.BitsLeft > 0 {
		d.BitsLeft--
	}
	if d.BitsLeft == 0 {
		d.BitsLeft = 8
		if d.BufferFull {
			d.Silence = false
			d.ShiftReg = d.Buffer
			d.BufferFull = false
		} else {
			d.Silence = true
		}
	}
}

func (d *DMC) fetch(mem MemoryReader) {
	d.Buffer = mem.Read(d.CurrentAddress)
	d.BufferFull = true
	d.CurrentAddress++
	if d.CurrentAddress == 0 {
		d.CurrentAddress = 0x8000
	}
	d.Remaining--
	if d.Remaining > 0 {
		return
	}
	switch {
	case d.Loop:
		d.restart()
	case d.IRQEnabled:
		d.IRQ = true
	}
}

func (d *DMC) output() byte {
	return d.Output
}
