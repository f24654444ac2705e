// Package config provides the explicit application configuration.
//
// The values are read from an optional YAML file, then from the environment
// (a `.env` file in the working directory is honoured). Business packages
// receive the sections they need and never read the environment.
package config
