package main

import (
	"fmt"

	gokeyring "github.com/zalando/go-keyring"
)

const keyringService = "run.mogzi.cli"

// SaveAPIKeyToKeyring securely stores a provider's API key in the OS keyring.
func SaveAPIKeyToKeyring(provider, apiKey string) error {
	key := "apikey_" + provider
	if err := gokeyring.Set(keyringService, key, apiKey); err != nil {
		return fmt.Errorf("%w: storing API key in keyring: %v", ErrIO, err)
	}
	return nil
}

// GetAPIKeyFromKeyring retrieves a provider's API key from the OS keyring.
// A missing entry is not an error; callers fall back to environment variables.
func GetAPIKeyFromKeyring(provider string) (string, error) {
	key := "apikey_" + provider
	apiKey, err := gokeyring.Get(keyringService, key)
	if err != nil {
		if err == gokeyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("%w: retrieving API key from keyring: %v", ErrIO, err)
	}
	return apiKey, nil
}

// DeleteAPIKeyFromKeyring removes a provider's API key from the OS keyring.
func DeleteAPIKeyFromKeyring(provider string) error {
	key := "apikey_" + provider
	if err := gokeyring.Delete(keyringService, key); err != nil && err != gokeyring.ErrNotFound {
		return fmt.Errorf("%w: deleting API key from keyring: %v", ErrIO, err)
	}
	return nil
}
