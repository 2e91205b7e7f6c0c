//go:build wireinject
// +build wireinject

package main

import (
	"github.com/donnyesq/gamble/config"
	appwire "github.com/donnyesq/gamble/wire"
	"github.com/google/wire"
)

func initializeApplication(cfg *config.Config) (*application, func(), error) {
	wire.Build(
		appwire.DefaultSet,
		wire.Struct(new(application), "*"),
	)
	return nil, nil, nil
}
