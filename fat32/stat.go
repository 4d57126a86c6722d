package fat32

import (
	"github.com/aligator/fatvfs/vfs"
)

// metadataOf converts a directory entry into vfs.Metadata.
func metadataOf(h *EntryHeader) vfs.Metadata {
	m := vfs.Metadata{
		Type: vfs.TypeRegular,
		Size: int64(h.FileSize),
		Permissions: vfs.Permissions{
			Read:  true,
			Write: !h.IsReadOnly(),
		},
		Hidden: h.Attribute&AttrHidden == AttrHidden,
		System: h.Attribute&AttrSystem == AttrSystem,

		CreateTime: ParseDateTime(h.CreateDate, h.CreateTime, h.CreateTimeTenth),
		// If the date IsZero() it contained any invalid value in which case the result is time.Time{}.
		ModTime:    ParseDateTime(h.WriteDate, h.WriteTime, 0),
		AccessTime: ParseDate(h.LastAccessDate),
	}

	if h.IsDirectory() {
		// Directories always have a size of 0 on FAT.
		m.Type = vfs.TypeDirectory
		m.Size = 0
		m.Permissions.Execute = true
	}

	return m
}

// stamp sets the modification (and for new entries the creation) time of h.
func (f *FileSystem) stamp(h *EntryHeader, created bool) {
	now := f.opts.now()

	h.WriteDate = FormatDate(now)
	h.WriteTime = FormatTime(now)
	h.LastAccessDate = h.WriteDate

	if created {
		h.CreateDate = h.WriteDate
		h.CreateTime = h.WriteTime
		h.CreateTimeTenth = formatTenths(now)
	}
}
