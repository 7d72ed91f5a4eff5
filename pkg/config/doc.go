// Package config holds Burrow's options object, its defaults and the YAML
// loader used by the serve command.
package config
