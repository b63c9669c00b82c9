// Package cli implements the regattacal command line.
//
// The root command carries the config and log level flags shared by every
// subcommand: serve runs the HTTP service with a scheduled feed refresh, fetch
// prints one normalization pass over the events sheet, import writes the
// fallback events file, and capture renders a month poster through the
// running service.
package cli
