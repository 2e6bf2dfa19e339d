package installer

import "os"

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeQuiet(path string) error {
	return os.Remove(path)
}
