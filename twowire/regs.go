package twowire

// Reg names one register of the two-wire controller.
type Reg int

const (
	CR1 Reg = iota
	CR2
	DR
	SR1
	SR2
	CCR
	TRISE
)

func (r Reg) String() string {
	switch r {
	case CR1:
		return "CR1"
	case CR2:
		return "CR2"
	case DR:
		return "DR"
	case SR1:
		return "SR1"
	case SR2:
		return "SR2"
	case CCR:
		return "CCR"
	case TRISE:
		return "TRISE"
	default:
		return "UNKNOWN"
	}
}

// CR1 control bits
const (
	CR1PE    uint32 = 1 << 0
	CR1Start uint32 = 1 << 8
	CR1Stop  uint32 = 1 << 9
	CR1Ack   uint32 = 1 << 10
)

// SR1 status bits
const (
	SR1SB   uint32 = 1 << 0
	SR1ADDR uint32 = 1 << 1
	SR1BTF  uint32 = 1 << 2
	SR1RXNE uint32 = 1 << 6
	SR1TXE  uint32 = 1 << 7
)

// Standard mode timing for a 16 MHz peripheral clock.
const (
	peripheralClockMHz = 16
	standardModeCCR    = 80
	standardModeTRISE  = 17
)

// Dir is the transfer direction encoded in the address byte.
type Dir byte

const (
	Write Dir = 0
	Read  Dir = 1
)

// Peripheral gives access to the controller register file.
// Loading SR2 has a side effect on real hardware (it clears ADDR), so callers must
// treat every Load as an observable bus event.
type Peripheral interface {
	Load(r Reg) uint32
	Store(r Reg, v uint32)
}

func flagName(flag uint32) string {
	switch flag {
	case SR1SB:
		return "SB"
	case SR1ADDR:
		return "ADDR"
	case SR1BTF:
		return "BTF"
	case SR1RXNE:
		return "RXNE"
	case SR1TXE:
		return "TXE"
	default:
		return "?"
	}
}
