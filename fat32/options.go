package fat32

import (
	"time"

	"github.com/sirupsen/logrus"
)

type options struct {
	log        *logrus.Entry
	skipChecks bool
	trustInfo  bool
	longNames  bool
	now        func() time.Time
}

func defaultOptions() options {
	return options{
		log: logrus.StandardLogger().WithField("component", "fat32"),
		now: time.Now,
	}
}

// Option configures Mount.
type Option func(*options)

// WithLogger sets the logger used by the filesystem.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithSkipChecks skips some boot sector validations which may allow you to open
// not perfectly standard FAT filesystems. The filesystem type and the geometry
// are always checked.
// Use with caution!
func WithSkipChecks() Option {
	return func(o *options) {
		o.skipChecks = true
	}
}

// WithTrustFSInfo makes StatFS report the free cluster count of the FSInfo
// sector instead of scanning the FAT. The value may be stale.
func WithTrustFSInfo() Option {
	return func(o *options) {
		o.trustInfo = true
	}
}

// WithLongNames enables the creation of long filenames. Without it only valid
// 8.3 names can be created or used as rename target.
func WithLongNames() Option {
	return func(o *options) {
		o.longNames = true
	}
}

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
