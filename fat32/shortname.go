package fat32

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/aligator/fatvfs/vfs"
	"github.com/elliotwutingfeng/asciiset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// validShortChars are the characters allowed in an 8.3 name (after upper casing).
var validShortChars, _ = asciiset.MakeASCIISet("!#$%&'()-0123456789@ABCDEFGHIJKLMNOPQRSTUVWXYZ^_`{}~")

// invalidLongChars may not appear in a long name. Control characters are rejected separately.
var invalidLongChars, _ = asciiset.MakeASCIISet("\"*/:<>?\\|")

const maxLongNameLength = 255

var (
	dotName    = [11]byte{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
	dotDotName = [11]byte{'.', '.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// shortName is an encoded 8.3 name.
type shortName struct {
	raw [11]byte
	// nt holds the NT case flags which restore an all lower case base or extension.
	nt byte
	// mixedCase is set if the case of the name could not be preserved.
	mixedCase bool
}

// encodeShort converts name into the space padded 11 byte 8.3 form.
// It splits on the last '.', upper cases and left-justifies both parts.
func encodeShort(name string) (shortName, error) {
	var result shortName

	if name == "" || name == "." || name == ".." {
		return result, checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid name %q", name)
	}

	if strings.Count(name, ".") > 1 {
		return result, checkpoint.Errorf(vfs.ErrNotSupported, "%q is no 8.3 name", name)
	}

	base, ext := name, ""
	dot := strings.LastIndexByte(name, '.')
	if dot >= 0 {
		base, ext = name[:dot], name[dot+1:]
		if ext == "" {
			return result, checkpoint.Errorf(vfs.ErrInvalidArgument, "%q ends with a dot", name)
		}
	}
	if base == "" {
		return result, checkpoint.Errorf(vfs.ErrInvalidArgument, "%q has no base name", name)
	}

	if len(base) > 8 || len(ext) > 3 {
		return result, checkpoint.Errorf(vfs.ErrNameTooLong, "%q does not fit into 8.3", name)
	}

	for i := range result.raw {
		result.raw[i] = ' '
	}

	lowerBase, mixedBase, err := upperShortPart(result.raw[0:8], base)
	if err != nil {
		return result, err
	}
	lowerExt, mixedExt, err := upperShortPart(result.raw[8:11], ext)
	if err != nil {
		return result, err
	}

	if lowerBase {
		result.nt |= ntLowerBase
	}
	if lowerExt {
		result.nt |= ntLowerExt
	}
	result.mixedCase = mixedBase || mixedExt

	return result, nil
}

// upperShortPart copies the upper cased s into dst.
// lower is true if s only contained lower case letters, mixed if it contained both cases.
func upperShortPart(dst []byte, s string) (lower, mixed bool, err error) {
	var hasLower, hasUpper bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			hasLower = true
			c -= 'a' - 'A'
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		}

		if !validShortChars.Contains(c) {
			return false, false, checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid character %q in 8.3 name", s[i])
		}
		dst[i] = c
	}

	return hasLower && !hasUpper, hasLower && hasUpper, nil
}

// displayShortName converts the stored 8.3 name back into "NAME.EXT".
func displayShortName(h *EntryHeader) string {
	raw := h.Name
	if raw[0] == entryKanji {
		raw[0] = entryDeleted
	}

	base := strings.TrimRight(decodeOEM(raw[0:8]), " ")
	ext := strings.TrimRight(decodeOEM(raw[8:11]), " ")

	if h.NTReserved&ntLowerBase != 0 {
		base = strings.ToLower(base)
	}
	if h.NTReserved&ntLowerExt != 0 {
		ext = strings.ToLower(ext)
	}

	if ext == "" {
		return base
	}
	return base + "." + ext
}

// decodeOEM decodes short name bytes using the IBM PC code page.
func decodeOEM(b []byte) string {
	for _, c := range b {
		if c >= 0x80 {
			s, err := charmap.CodePage437.NewDecoder().Bytes(b)
			if err != nil {
				return string(b)
			}
			return string(s)
		}
	}
	return string(b)
}

// shortNameChecksum is the checksum stored in every LFN record of a short name.
func shortNameChecksum(name [11]byte) byte {
	var sum byte
	for _, c := range name {
		sum = (sum&1)<<7 + sum>>1 + c
	}
	return sum
}

// shortAlias generates a unique "BASIS~N.EXT" alias for a long name.
// taken reports whether an alias is already used in the directory.
func shortAlias(name string, taken func([11]byte) bool) ([11]byte, error) {
	var alias [11]byte

	name = strings.TrimLeft(name, ". ")
	base, ext := name, ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		base, ext = name[:dot], name[dot+1:]
	}

	basis := aliasPart(base)
	if basis == "" {
		basis = "_"
	}
	extPart := aliasPart(ext)
	if len(extPart) > 3 {
		extPart = extPart[:3]
	}

	for n := 1; n < 1000000; n++ {
		tail := "~" + strconv.Itoa(n)
		prefix := basis
		if len(prefix) > 8-len(tail) {
			prefix = prefix[:8-len(tail)]
		}

		copy(alias[:], padRight(prefix+tail, 8))
		copy(alias[8:], padRight(extPart, 3))
		if !taken(alias) {
			return alias, nil
		}
	}

	return alias, checkpoint.Errorf(vfs.ErrExists, "no free short alias for %q", name)
}

// aliasPart upper cases s and replaces every character not allowed in a short name by '_'.
// Spaces and dots are dropped.
func aliasPart(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ' ' || r == '.':
			continue
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case r < 0x80 && validShortChars.Contains(byte(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// validateLongName checks that name can be stored in LFN records.
func validateLongName(name string) error {
	if name == "" || name == "." || name == ".." {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid name %q", name)
	}

	for _, r := range name {
		if r < 0x20 || (r < 0x80 && invalidLongChars.Contains(byte(r))) {
			return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid character %q in name", r)
		}
	}
	return nil
}

// encodeLongName builds the LFN records of name in storage order, that is the
// fragment with the highest ordinal first.
func encodeLongName(name string, short [11]byte) ([]LongFilenameEntry, error) {
	if err := validateLongName(name); err != nil {
		return nil, err
	}

	encoded, err := utf16le.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, checkpoint.Wrap(err, vfs.ErrInvalidArgument)
	}

	units := make([]uint16, len(encoded)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(encoded[2*i:])
	}
	if len(units) > maxLongNameLength {
		return nil, checkpoint.Errorf(vfs.ErrNameTooLong, "%q has %d UTF-16 units, max is %d", name, len(units), maxLongNameLength)
	}

	count := (len(units) + charsPerLong - 1) / charsPerLong
	// Terminate with 0x0000 if there is room and pad the rest with 0xFFFF.
	padded := make([]uint16, count*charsPerLong)
	copy(padded, units)
	for i := len(units); i < len(padded); i++ {
		if i == len(units) {
			padded[i] = 0x0000
		} else {
			padded[i] = 0xFFFF
		}
	}

	checksum := shortNameChecksum(short)
	entries := make([]LongFilenameEntry, 0, count)
	for ord := count; ord >= 1; ord-- {
		e := LongFilenameEntry{
			Sequence:  byte(ord),
			Attribute: AttrLongName,
			Checksum:  checksum,
		}
		if ord == count {
			e.Sequence |= lastLongEntry
		}

		var chars [charsPerLong]uint16
		copy(chars[:], padded[(ord-1)*charsPerLong:ord*charsPerLong])
		e.setChars(chars)
		entries = append(entries, e)
	}

	return entries, nil
}

// decodeLongUnits converts the UTF-16 code units up to the first 0x0000 or 0xFFFF into a string.
func decodeLongUnits(units []uint16) string {
	b := make([]byte, 0, len(units)*2)
	for _, u := range units {
		if u == 0x0000 || u == 0xFFFF {
			break
		}
		b = append(b, byte(u), byte(u>>8))
	}

	s, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(s)
}
