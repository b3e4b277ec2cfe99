package main

import (
	"github.com/alecthomas/kong"
)

const (
	// appName is the CLI name
	appName = "pricewatch"

	// appDescription is the CLI description
	appDescription = "Command line client for the PriceWatch storefront"
)

func main() {
	cli := CLI{}
	ctx := kong.Parse(
		&cli,
		kong.UsageOnError(),
		kong.Configuration(KongTOMLResolver),
		kong.Name(appName),
		kong.Description(appDescription),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
