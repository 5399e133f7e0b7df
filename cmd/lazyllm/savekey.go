package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/coder/serpent"
)

const appDir = "lazyllm"

func configDir() (string, error) {
	cdir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(cdir, appDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func keyPath() (string, error) {
	cdir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cdir, "openai.key"), nil
}

func saveKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is empty")
	}
	kp, err := keyPath()
	if err != nil {
		return err
	}
	return os.WriteFile(kp, []byte(key), 0o600)
}

func loadKey() (string, error) {
	kp, err := keyPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(kp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// resolveKey picks between the saved key and the --openai-key option. An
// explicit flag wins over the saved key; the saved key wins over a value that
// only came from $OPENAI_API_KEY.
func resolveKey(inv *serpent.Invocation, cliKey string) (string, error) {
	savedKey, err := loadKey()
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if savedKey == "" {
		return cliKey, nil
	}
	if cliKey == "" {
		return savedKey, nil
	}
	opt := inv.Command.Options.ByName("openai-key")
	if opt != nil && opt.ValueSource == serpent.ValueSourceEnv {
		return savedKey, nil
	}
	return cliKey, nil
}
