// Package cli parses the usbspeed command line.
package cli

import (
	"github.com/jessevdk/go-flags"
)

// Option defines command line options.
type Option struct {
	Config      string `short:"c" long:"config" description:"configuration file (yaml or json)" env:"USBSPEED_CONFIG"`
	Fixture     string `short:"f" long:"fixture" description:"read the topology from a file instead of running the profiler"`
	Once        bool   `short:"1" long:"once" description:"scan once, print the devices and exit"`
	JSON        bool   `long:"json" description:"print --once output as JSON"`
	WatchConfig bool   `short:"w" long:"watch-config" description:"apply log level changes from the config file without restarting"`
	Debug       bool   `short:"d" long:"debug" description:"debug mode"`
	Version     bool   `short:"v" long:"version" description:"display the version and exit"`
}

// Parse returns parsed command-line flags in Option struct
func Parse(args []string) (*Option, error) {
	opt := &Option{}
	parser := flags.NewParser(opt, flags.Default)
	parser.Name = "usbspeed"
	parser.Usage = "[OPTIONS]"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return opt, nil
}

func IsHelp(err error) bool {
	return flags.WroteHelp(err)
}
