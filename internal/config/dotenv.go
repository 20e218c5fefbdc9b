package config

import (
	"os"

	"github.com/subosito/gotenv"
)

// loadDotEnv loads KEY=VALUE lines from path if present. Existing environment
// variables take precedence and empty values are ignored. Parsing stops at the
// first malformed line; the lines before it still apply.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	env, err := gotenv.StrictParse(f)
	if err != nil {
		logger.Printf("%s: %v (later lines ignored)", path, err)
	}
	for key, val := range env {
		if val == "" {
			continue
		}
		if _, set := os.LookupEnv(key); !set {
			_ = os.Setenv(key, val)
		}
	}
}
