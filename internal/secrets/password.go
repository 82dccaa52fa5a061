package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"leadhunt-engine/internal/domain"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "leadhunt"

	// EnvIMAPPassword is checked when the keychain has nothing (headless hosts).
	EnvIMAPPassword = "LEADHUNT_IMAP_PASSWORD"
)

func GetIMAPPassword(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		pw, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if pw := strings.TrimSpace(os.Getenv(EnvIMAPPassword)); pw != "" {
		return pw, nil
	}
	return "", errors.New("IMAP password not found (set it in keychain or via env)")
}

func SetIMAPPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func DeleteIMAPPassword(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

// IMAPKeyringAccount names the keychain entry for one inbox source.
func IMAPKeyringAccount(src domain.Source) string {
	return fmt.Sprintf("leadhunt:imap:%s:%s@%s", src.Name, src.IMAP.Username, src.IMAP.Host)
}
