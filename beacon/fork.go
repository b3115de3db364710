package beacon

import "errors"

// ErrUnknownFork is returned when a fork version cannot be resolved, or
// when a request's body variant disagrees with its fork version.
var ErrUnknownFork = errors.New("beacon: unknown fork")

// Fork names the consensus-layer fork a block body variant belongs to.
type Fork int

// Block body variants, genesis first.
const (
	Phase0 Fork = iota
	Altair
	Bellatrix
	Capella
	Deneb
)

var forkNames = map[Fork]string{
	Phase0:    "PHASE0",
	Altair:    "ALTAIR",
	Bellatrix: "BELLATRIX",
	Capella:   "CAPELLA",
	Deneb:     "DENEB",
}

func (f Fork) String() string {
	if name, ok := forkNames[f]; ok {
		return name
	}
	return "UNKNOWN"
}

// ForkByName resolves the request-side fork name ("PHASE0", "ALTAIR", ...).
func ForkByName(name string) (Fork, bool) {
	for f, n := range forkNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// ForkSchedule maps 4-byte fork versions to forks. The signer holds one
// schedule for the network it serves.
type ForkSchedule struct {
	Phase0Version    [4]byte
	AltairVersion    [4]byte
	BellatrixVersion [4]byte
	CapellaVersion   [4]byte
	DenebVersion     [4]byte
}

// MainnetForkSchedule returns the mainnet fork versions.
func MainnetForkSchedule() *ForkSchedule {
	return &ForkSchedule{
		Phase0Version:    [4]byte{0x00, 0x00, 0x00, 0x00},
		AltairVersion:    [4]byte{0x01, 0x00, 0x00, 0x00},
		BellatrixVersion: [4]byte{0x02, 0x00, 0x00, 0x00},
		CapellaVersion:   [4]byte{0x03, 0x00, 0x00, 0x00},
		DenebVersion:     [4]byte{0x04, 0x00, 0x00, 0x00},
	}
}

// ByVersion resolves a fork version against the schedule.
func (s *ForkSchedule) ByVersion(v [4]byte) (Fork, bool) {
	switch v {
	case s.Phase0Version:
		return Phase0, true
	case s.AltairVersion:
		return Altair, true
	case s.BellatrixVersion:
		return Bellatrix, true
	case s.CapellaVersion:
		return Capella, true
	case s.DenebVersion:
		return Deneb, true
	default:
		return 0, false
	}
}
