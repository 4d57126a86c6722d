// File model contains the structs which match the direct structures of the FAT filesystem
// together with their explicit little endian encoding.

package fat32

import (
	"encoding/binary"
)

// Attribute bits of a directory entry.
const (
	AttrReadOnly  byte = 0x01
	AttrHidden    byte = 0x02
	AttrSystem    byte = 0x04
	AttrVolumeID  byte = 0x08
	AttrDirectory byte = 0x10
	AttrArchive   byte = 0x20
	AttrLongName       = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

const (
	entrySize = 32

	// First name byte markers.
	entryFree    = 0x00
	entryDeleted = 0xE5
	// entryKanji is stored instead of a leading 0xE5 character.
	entryKanji = 0x05

	// lastLongEntry marks the LFN record with the highest ordinal.
	lastLongEntry = 0x40
	longOrdMask   = 0x3F
	charsPerLong  = 13

	// NT reserved byte case flags.
	ntLowerBase = 0x08
	ntLowerExt  = 0x10
)

// EntryHeader is the 32 byte short directory entry.
type EntryHeader struct {
	Name            [11]byte
	Attribute       byte
	NTReserved      byte
	CreateTimeTenth byte
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHI  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLO  uint16
	FileSize        uint32
}

// LongFilenameEntry is a 32 byte long filename record sharing the layout of EntryHeader.
type LongFilenameEntry struct {
	Sequence  byte
	First     [5]uint16
	Attribute byte
	EntryType byte
	Checksum  byte
	Second    [6]uint16
	Zero      [2]byte
	Third     [2]uint16
}

// ExtendedEntryHeader is a decoded short entry together with its reconstructed long name.
type ExtendedEntryHeader struct {
	EntryHeader
	ExtendedName string

	// Slot is the index of the short entry inside the directory data.
	Slot int
	// LongSlots is the number of LFN records directly preceding Slot.
	LongSlots int
}

func decodeEntryHeader(b []byte) EntryHeader {
	var h EntryHeader
	copy(h.Name[:], b[0:11])
	h.Attribute = b[11]
	h.NTReserved = b[12]
	h.CreateTimeTenth = b[13]
	h.CreateTime = binary.LittleEndian.Uint16(b[14:16])
	h.CreateDate = binary.LittleEndian.Uint16(b[16:18])
	h.LastAccessDate = binary.LittleEndian.Uint16(b[18:20])
	h.FirstClusterHI = binary.LittleEndian.Uint16(b[20:22])
	h.WriteTime = binary.LittleEndian.Uint16(b[22:24])
	h.WriteDate = binary.LittleEndian.Uint16(b[24:26])
	h.FirstClusterLO = binary.LittleEndian.Uint16(b[26:28])
	h.FileSize = binary.LittleEndian.Uint32(b[28:32])
	return h
}

// encode writes the entry into the first 32 bytes of b.
func (h *EntryHeader) encode(b []byte) {
	copy(b[0:11], h.Name[:])
	if b[0] == entryDeleted {
		b[0] = entryKanji
	}
	b[11] = h.Attribute
	b[12] = h.NTReserved
	b[13] = h.CreateTimeTenth
	binary.LittleEndian.PutUint16(b[14:16], h.CreateTime)
	binary.LittleEndian.PutUint16(b[16:18], h.CreateDate)
	binary.LittleEndian.PutUint16(b[18:20], h.LastAccessDate)
	binary.LittleEndian.PutUint16(b[20:22], h.FirstClusterHI)
	binary.LittleEndian.PutUint16(b[22:24], h.WriteTime)
	binary.LittleEndian.PutUint16(b[24:26], h.WriteDate)
	binary.LittleEndian.PutUint16(b[26:28], h.FirstClusterLO)
	binary.LittleEndian.PutUint32(b[28:32], h.FileSize)
}

// Bytes returns the on-disk representation.
func (h *EntryHeader) Bytes() []byte {
	b := make([]byte, entrySize)
	h.encode(b)
	return b
}

// FirstCluster joins the high and low half of the first cluster.
func (h *EntryHeader) FirstCluster() uint32 {
	return uint32(h.FirstClusterHI)<<16 | uint32(h.FirstClusterLO)
}

func (h *EntryHeader) SetFirstCluster(cluster uint32) {
	h.FirstClusterHI = uint16(cluster >> 16)
	h.FirstClusterLO = uint16(cluster)
}

func (h *EntryHeader) IsDirectory() bool {
	return isDirectory(h.Attribute)
}

func (h *EntryHeader) IsVolumeLabel() bool {
	return isVolumeLabel(h.Attribute)
}

func (h *EntryHeader) IsReadOnly() bool {
	return h.Attribute&AttrReadOnly == AttrReadOnly
}

// isDot reports whether the entry is one of the "." and ".." entries of a sub directory.
func (h *EntryHeader) isDot() bool {
	return h.Name == dotName || h.Name == dotDotName
}

func isDirectory(attr byte) bool {
	return !isLongName(attr) && attr&AttrDirectory == AttrDirectory
}

func isVolumeLabel(attr byte) bool {
	return !isLongName(attr) && attr&AttrVolumeID == AttrVolumeID
}

// isLongName reports whether attr is exactly the LFN marker.
func isLongName(attr byte) bool {
	return attr == AttrLongName
}

func decodeLongFilenameEntry(b []byte) LongFilenameEntry {
	var l LongFilenameEntry
	l.Sequence = b[0]
	for i := range l.First {
		l.First[i] = binary.LittleEndian.Uint16(b[1+2*i:])
	}
	l.Attribute = b[11]
	l.EntryType = b[12]
	l.Checksum = b[13]
	for i := range l.Second {
		l.Second[i] = binary.LittleEndian.Uint16(b[14+2*i:])
	}
	copy(l.Zero[:], b[26:28])
	for i := range l.Third {
		l.Third[i] = binary.LittleEndian.Uint16(b[28+2*i:])
	}
	return l
}

func (l *LongFilenameEntry) encode(b []byte) {
	b[0] = l.Sequence
	for i, c := range l.First {
		binary.LittleEndian.PutUint16(b[1+2*i:], c)
	}
	b[11] = l.Attribute
	b[12] = l.EntryType
	b[13] = l.Checksum
	for i, c := range l.Second {
		binary.LittleEndian.PutUint16(b[14+2*i:], c)
	}
	copy(b[26:28], l.Zero[:])
	for i, c := range l.Third {
		binary.LittleEndian.PutUint16(b[28+2*i:], c)
	}
}

// Bytes returns the on-disk representation.
func (l *LongFilenameEntry) Bytes() []byte {
	b := make([]byte, entrySize)
	l.encode(b)
	return b
}

// Ordinal is the position of the fragment inside the name, starting at 1.
func (l *LongFilenameEntry) Ordinal() int {
	return int(l.Sequence & longOrdMask)
}

// IsLast reports whether the fragment is the logically last one (stored first).
func (l *LongFilenameEntry) IsLast() bool {
	return l.Sequence&lastLongEntry == lastLongEntry
}

// chars returns the 13 UTF-16 code units in name order.
func (l *LongFilenameEntry) chars() [charsPerLong]uint16 {
	var c [charsPerLong]uint16
	copy(c[0:5], l.First[:])
	copy(c[5:11], l.Second[:])
	copy(c[11:13], l.Third[:])
	return c
}

func (l *LongFilenameEntry) setChars(c [charsPerLong]uint16) {
	copy(l.First[:], c[0:5])
	copy(l.Second[:], c[5:11])
	copy(l.Third[:], c[11:13])
}
