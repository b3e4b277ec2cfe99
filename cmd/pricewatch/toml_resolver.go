package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pelletier/go-toml"
)

// KongTOMLResolver is the kong resolver function for the TOML configuration file.
// A flag named "storage-dir" is looked up as "storage-dir" and then as "storage.dir".
func KongTOMLResolver(r io.Reader) (kong.Resolver, error) {
	config, err := toml.LoadReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	var f kong.ResolverFunc = func(context *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		if v := config.Get(strings.ReplaceAll(flag.Name, "-", ".")); v != nil {
			return v, nil
		}
		return config.Get(flag.Name), nil
	}

	return f, nil
}
