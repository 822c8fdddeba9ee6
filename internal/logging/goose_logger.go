package logging

import "github.com/pressly/goose/v3"

// MigrationLogger routes goose output into the notedav log.
type MigrationLogger struct {
}

var _ goose.Logger = (*MigrationLogger)(nil)

func (m MigrationLogger) Fatalf(format string, v ...interface{}) {
	Fatalf(format, v...)
}

func (m MigrationLogger) Printf(format string, v ...interface{}) {
	Debugf(format, v...)
}
