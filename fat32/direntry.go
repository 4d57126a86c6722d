package fat32

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// DisplayName is the long name if one exists, the 8.3 name otherwise.
func (h *ExtendedEntryHeader) DisplayName() string {
	if h.ExtendedName != "" {
		return h.ExtendedName
	}
	return displayShortName(&h.EntryHeader)
}

// decodeEntries parses the raw data of a directory.
//
// Deleted records are skipped and the first record starting with 0x00 ends the
// directory. Long filename records are collected until the next short entry and
// then joined, if they are consistent and match the checksum of the short entry.
// Otherwise the problem is logged and only the 8.3 name is used.
// Volume labels and the "." and ".." entries are part of the result.
func decodeEntries(data []byte, log *logrus.Entry) []ExtendedEntryHeader {
	var (
		result    []ExtendedEntryHeader
		fragments []LongFilenameEntry
	)

	for slot := 0; (slot+1)*entrySize <= len(data); slot++ {
		record := data[slot*entrySize : (slot+1)*entrySize]

		if record[0] == entryFree {
			break
		}

		if record[0] == entryDeleted {
			fragments = fragments[:0]
			continue
		}

		if isLongName(record[11]) {
			lfn := decodeLongFilenameEntry(record)
			// A new name always starts with the fragment flagged as last.
			if lfn.IsLast() {
				fragments = fragments[:0]
			}
			fragments = append(fragments, lfn)
			continue
		}

		entry := ExtendedEntryHeader{
			EntryHeader: decodeEntryHeader(record),
			Slot:        slot,
			LongSlots:   len(fragments),
		}
		if len(fragments) > 0 {
			name, err := joinLongName(fragments, entry.Name)
			if err != "" {
				log.WithFields(logrus.Fields{
					"slot":  slot,
					"short": displayShortName(&entry.EntryHeader),
				}).Warnf("ignoring long filename: %s", err)
			} else {
				entry.ExtendedName = name
			}
		}

		result = append(result, entry)
		fragments = fragments[:0]
	}

	return result
}

// joinLongName rebuilds the name from the fragments in storage order.
// A non-empty problem describes why they cannot be used.
func joinLongName(fragments []LongFilenameEntry, short [11]byte) (name string, problem string) {
	if !fragments[0].IsLast() || fragments[0].Ordinal() != len(fragments) {
		return "", "fragments are incomplete"
	}

	checksum := shortNameChecksum(short)
	ordered := make([]LongFilenameEntry, len(fragments))
	copy(ordered, fragments)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Ordinal() < ordered[j].Ordinal()
	})

	units := make([]uint16, 0, len(ordered)*charsPerLong)
	for i, f := range ordered {
		if f.Ordinal() != i+1 {
			return "", "fragment ordinals are not contiguous"
		}
		if f.Checksum != checksum {
			return "", "checksum does not match the short name"
		}

		chars := f.chars()
		units = append(units, chars[:]...)
	}

	name = decodeLongUnits(units)
	if name == "" {
		return "", "long name is empty"
	}
	return name, ""
}
