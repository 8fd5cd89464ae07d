// Package report formats translations and statistics as text.
package report

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects what is printed for a run.
type Mode string

// Output modes.
const (
	ModeBitmasks      Mode = "bitmasks"
	ModeOffset        Mode = "offset"
	ModeVPN2PFN       Mode = "vpn2pfn"
	ModeVA2PA         Mode = "va2pa"
	ModeVA2PAWithWalk Mode = "va2pa_atc_ptwalk"
	ModeSummary       Mode = "summary"

	DefaultMode = ModeSummary
)

// ErrUnknownMode is returned by ParseMode for names it does not know.
var ErrUnknownMode = errors.New("unknown output mode")

// Modes lists all output modes.
func Modes() []Mode {
	return []Mode{
		ModeBitmasks,
		ModeOffset,
		ModeVPN2PFN,
		ModeVA2PA,
		ModeVA2PAWithWalk,
		ModeSummary,
	}
}

// ParseMode converts a mode name into a Mode.
func ParseMode(name string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == name {
			return m, nil
		}
	}

	return "", fmt.Errorf("%q: %w", name, ErrUnknownMode)
}

// ModeNames returns the names of all modes joined for help texts.
func ModeNames() string {
	names := make([]string, 0, len(Modes()))
	for _, m := range Modes() {
		names = append(names, string(m))
	}

	return strings.Join(names, ", ")
}

// TranslatesAddresses tells if the mode runs addresses through the MMU.
func (m Mode) TranslatesAddresses() bool {
	return m != ModeBitmasks && m != ModeOffset
}
