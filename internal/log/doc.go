// Package log builds the slog loggers used by netprobe.
//
// Every logger returned here is wrapped in a SecureHandler, which masks
// attribute values that look like credentials. Probe settings carry
// passwords, BLE keys and SMTP logins, and probe messages are logged at
// debug level, so masking happens in the handler rather than at each call
// site.
//
// # Usage
//
//	logger, closer, err := log.New(log.Options{Verbose: true, File: "/var/log/netprobe.log"})
//	if err != nil {
//		return err
//	}
//	defer closer.Close()
//	slog.SetDefault(logger)
//
// When Options.File is set, output goes to a size-rotated file managed by
// lumberjack in addition to the console writer.
package log
