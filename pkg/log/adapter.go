// Package log bridges third-party logger interfaces onto the application's
// logrus instance.
package log

import "github.com/sirupsen/logrus"

// BadgerAdapter satisfies badger.Logger so the embedded database logs
// through the application's logrus entry instead of stderr.
//
// Badger's Debugf output is high-volume (memtable flushes, value-log GC),
// so it lands at trace level rather than debug.
type BadgerAdapter struct {
	entry *logrus.Entry
}

// NewBadgerAdapter wraps entry for use with badger's WithLogger option.
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{entry: entry}
}

func (a *BadgerAdapter) Errorf(format string, args ...interface{}) {
	a.entry.Errorf(format, args...)
}

func (a *BadgerAdapter) Warningf(format string, args ...interface{}) {
	a.entry.Warningf(format, args...)
}

func (a *BadgerAdapter) Infof(format string, args ...interface{}) {
	a.entry.Infof(format, args...)
}

// Debugf logs at trace level, see the type comment.
func (a *BadgerAdapter) Debugf(format string, args ...interface{}) {
	a.entry.Tracef(format, args...)
}
