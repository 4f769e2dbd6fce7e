package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `
Usage: ridehail -mode <mode>

Modes:
  trip-service      trip lifecycle, matching and passenger interactions
  location-service  driver position reporting and geospatial queries
  payment-service   wallets, fare settlement and the gateway callback

Configuration is read from environment variables, see config/config.go
for the full list and defaults.
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
}
