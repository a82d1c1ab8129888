package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   address and port of the backend server
//	-f string   path of the local database file
//	-r int      session restore timeout (milliseconds)
//	-t int      backend request timeout (seconds)
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-r", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "local database file")
	restoreTimeout := fs.Int("r", int(cfg.RestoreTimeout.Milliseconds()), "session restore timeout (in milliseconds)")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RestoreTimeout = time.Duration(*restoreTimeout) * time.Millisecond
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
