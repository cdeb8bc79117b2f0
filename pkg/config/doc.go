// Package config loads declarative configuration structs from environment
// variables using struct tags, with optional .env file support for local
// development.
//
// Each configuration type is parsed once per process and cached, so components
// can call Load independently without coordinating:
//
//	var cfg digest.Config
//	config.MustLoad(&cfg)
//
// Fields are tagged with `env` and `envDefault`; required values use
// `env:"NAME,required"`.
package config
