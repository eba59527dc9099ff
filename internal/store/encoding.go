package store

import (
	"strings"

	apperrors "licensegate/internal/errors"
)

// MachineListSeparator joins bound machine ids into the single stored column.
// The delimited string exists only at this serialization boundary; everything
// above works on []string.
const MachineListSeparator = ","

// ValidMachineID reports whether a machine id can be stored without
// corrupting the encoded list.
func ValidMachineID(machineID string) bool {
	return machineID != "" && !strings.Contains(machineID, MachineListSeparator)
}

// EncodeMachineList serializes the bound set for storage. Entries keep their
// order; ids embedding the separator are rejected rather than silently split
// on the way back out.
func EncodeMachineList(machines []string) (string, error) {
	parts := make([]string, 0, len(machines))
	for _, m := range machines {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if !ValidMachineID(m) {
			return "", apperrors.ErrInvalidMachineID
		}
		parts = append(parts, m)
	}
	return strings.Join(parts, MachineListSeparator), nil
}

// DecodeMachineList parses the stored form, trimming segments and dropping
// empties, so legacy rows with stray separators stay readable.
func DecodeMachineList(encoded string) []string {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	var machines []string
	for _, part := range strings.Split(encoded, MachineListSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		machines = append(machines, part)
	}
	return machines
}
