package partition

import (
	"fmt"
	"strings"
)

// Type classifies a partition. Normal is the zero value; the other values are bits.
type Type int

const (
	Normal    Type = 0x00
	Logical   Type = 0x01
	Extended  Type = 0x02
	Freespace Type = 0x04
	Metadata  Type = 0x08
)

// IsActive reports whether the type describes a real partition rather than free space
// or label metadata.
func (t Type) IsActive() bool {
	return t&(Freespace|Metadata) == 0
}

func (t Type) String() string {
	if t == Normal {
		return "primary"
	}
	var names []string
	for _, b := range []struct {
		bit  Type
		name string
	}{
		{Logical, "logical"},
		{Extended, "extended"},
		{Freespace, "free"},
		{Metadata, "metadata"},
	} {
		if t&b.bit != 0 {
			names = append(names, b.name)
		}
	}
	return strings.Join(names, ",")
}

// Flag is a per-partition attribute a label type may support.
type Flag int

const (
	FlagBoot Flag = iota + 1
	FlagRoot
	FlagSwap
	FlagHidden
	FlagRAID
	FlagLVM
	FlagLBA
	FlagLegacyBoot
	FlagESP
	FlagBIOSGrub
	FlagPrep
	FlagMSFTReserved
	FlagIRST
	FlagBLSBoot
)

var flagNames = []string{
	FlagBoot:         "boot",
	FlagRoot:         "root",
	FlagSwap:         "swap",
	FlagHidden:       "hidden",
	FlagRAID:         "raid",
	FlagLVM:          "lvm",
	FlagLBA:          "lba",
	FlagLegacyBoot:   "legacy_boot",
	FlagESP:          "esp",
	FlagBIOSGrub:     "bios_grub",
	FlagPrep:         "prep",
	FlagMSFTReserved: "msftres",
	FlagIRST:         "irst",
	FlagBLSBoot:      "bls_boot",
}

func (f Flag) String() string {
	if f <= 0 || int(f) >= len(flagNames) {
		return fmt.Sprintf("Flag(%d)", int(f))
	}
	return flagNames[f]
}

// Flags returns every flag in declaration order.
func Flags() []Flag {
	flags := make([]Flag, 0, len(flagNames)-1)
	for f := FlagBoot; int(f) < len(flagNames); f++ {
		flags = append(flags, f)
	}
	return flags
}

// FlagFromName looks a flag up by its name, case-insensitively.
func FlagFromName(name string) (Flag, error) {
	for _, f := range Flags() {
		if strings.EqualFold(f.String(), name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown partition flag %q", name)
}
