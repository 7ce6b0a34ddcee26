// Package config loads the gateway daemon configuration from a JSON file and
// applies defaults plus environment overrides.
package config
