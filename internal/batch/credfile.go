package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spriteops/key-server/internal/validate"
)

// writeFileAtomic writes via a temp file and rename so a crash mid-write
// cannot leave a torn file visible to the provisioning scripts that read it.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func credentialFilePath(credDir, provider string) string {
	return filepath.Join(credDir, provider+".json")
}

func writeCredentialFile(credDir, provider string, values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials for %s: %w", provider, err)
	}
	return writeFileAtomic(credentialFilePath(credDir, provider), data)
}

// LoadCredentials reads the collected env-var values for one provider. A
// missing file yields an empty map: absent keys mean "not yet collected".
func LoadCredentials(credDir, provider string) (map[string]string, error) {
	if !validate.ValidProvider(provider) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	raw, err := os.ReadFile(credentialFilePath(credDir, provider))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials for %s: %w", provider, err)
	}
	values := make(map[string]string)
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode credentials for %s: %w", provider, err)
	}
	return values, nil
}

// InvalidateCredentials deletes a provider's credential file. Missing files
// are not an error.
func InvalidateCredentials(credDir, provider string) error {
	if !validate.ValidProvider(provider) {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	if err := os.Remove(credentialFilePath(credDir, provider)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials for %s: %w", provider, err)
	}
	return nil
}
