package connstate

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

const sep = string(os.PathSeparator)

// fileConfig is the on-disk shape of connstate.json, decoded with the
// teacher's drop-in JSON encoder (hdr.go, mid.go both reach for
// goccy/go-json over the stdlib encoding/json for wire and config
// structures alike).
type fileConfig struct {
	CatchUpBeforeDeclaringConnected *bool `json:"catch_up_before_declaring_connected"`
	MaxClientLeaveWaitSeconds       *int  `json:"max_client_leave_wait_seconds"`
}

// Config is the Config collaborator: GetBool looks up a single named
// flag. The production implementation backs it with a
// connstate.json file in the same config directory the teacher's
// GetCertsDir/GetPrivateCertificateAuthDir resolve to ($XDG_CONFIG_HOME,
// then $HOME/.config, then the working directory).
type Config struct {
	dir    string
	loaded fileConfig
}

// LoadConfig locates and decodes connstate.json. A missing file is
// not an error: GetBool then reports absent for every key, same as an
// owner that never configured the flag.
func LoadConfig() *Config {
	c := &Config{dir: configDir()}
	path := filepath.Join(c.dir, "connstate.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err == nil {
		c.loaded = fc
	}
	return c
}

// GetBool returns the named flag's configured value, or (false, false)
// if it was never set. The only flag this package reads is
// "catch_up_before_declaring_connected".
func (c *Config) GetBool(name string) (bool, bool) {
	switch name {
	case "catch_up_before_declaring_connected":
		if c.loaded.CatchUpBeforeDeclaringConnected != nil {
			return *c.loaded.CatchUpBeforeDeclaringConnected, true
		}
	}
	return false, false
}

// MaxClientLeaveWaitSeconds returns the configured max_client_leave_wait
// override in seconds, or (0, false) if connstate.json didn't set one;
// owner.go's leaveWaitOrDefault falls back to DefaultLeaveWait when
// the owner reports no value.
func (c *Config) MaxClientLeaveWaitSeconds() (int, bool) {
	if c.loaded.MaxClientLeaveWaitSeconds != nil {
		return *c.loaded.MaxClientLeaveWaitSeconds, true
	}
	return 0, false
}

// configDir mirrors the teacher's GetCertsDir (config.go):
// $XDG_CONFIG_HOME/connstate, else $HOME/.config/connstate, else a
// connstate directory under the working directory, created if it
// doesn't yet exist.
func configDir() (path string) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	home := os.Getenv("HOME")
	switch {
	case dir != "":
		path = dir + sep + "connstate"
	case home != "":
		path = home + sep + ".config" + sep + "connstate"
	default:
		path = "connstate"
	}
	_ = os.MkdirAll(path, 0700)
	return path
}
