// Package config loads and saves the debugger's user configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"path"

	yaml "gopkg.in/yaml.v2"
)

const (
	configDir  string = ".noir-debug"
	configFile string = "config.yml"
)

// Config is the user configuration, read from and written back to
// $HOME/.noir-debug/config.yml.
type Config struct {
	// Aliases maps command names to a list of extra names for that command.
	Aliases map[string][]string `yaml:"aliases"`

	// SourceListLineColor is the ANSI color escape used for line numbers in
	// source listings.
	SourceListLineColor string `yaml:"source-list-line-color,omitempty"`
}

// LoadConfig attempts to populate a Config object from the config file.
// A missing file yields a default config, not an error.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return &Config{}, fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to get config file path: %v", err)
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			return &Config{}, fmt.Errorf("error creating default config file: %v", err)
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("closing config file failed: %v\n", err)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to decode config file: %v", err)
	}
	return &c, nil
}

// SaveConfig writes config back to the config file.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	_, err = f.Seek(0, io.SeekStart)
	return f, err
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the circuit debugger.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an option.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Uncomment to change the colors used in source listings.
# source-list-line-color: "\x1b[34m"
`)
	return err
}

// createConfigPath creates the directory structure for the config file.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return path.Join(home, configDir, file), nil
}
