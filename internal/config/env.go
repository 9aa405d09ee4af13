package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// ReadDotEnv parses path and returns a lookup over its values only.
func ReadDotEnv(path string) (func(string) (string, bool), error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}
	return func(k string) (string, bool) {
		v, ok := values[k]
		return v, ok
	}, nil
}

// EnvLookup layers the dotenv file at path under the process environment:
// variables already set in the environment win. The file's values are not
// copied into os.Environ. A missing file or empty path yields os.LookupEnv.
func EnvLookup(path string) (func(string) (string, bool), error) {
	if path == "" {
		return os.LookupEnv, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return os.LookupEnv, nil
	}
	file, err := ReadDotEnv(path)
	if err != nil {
		return os.LookupEnv, err
	}
	return func(k string) (string, bool) {
		if v, ok := os.LookupEnv(k); ok {
			return v, true
		}
		return file(k)
	}, nil
}
