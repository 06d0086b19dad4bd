package config

import (
	"fmt"
	"os"

	"github.com/connectlab/sockshub/internal/acl"
)

// LoadACL reads and compiles the ACL file at path, or returns
// acl.Empty() if path is empty (no ACL configured means every
// destination goes through the upstream). A parse failure is wrapped as
// a config.Error so the caller maps it to exit code 2.
func LoadACL(path string) (*acl.List, error) {
	if path == "" {
		return acl.Empty(), nil
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return nil, wrap(fmt.Errorf("read acl file %s: %w", path, err))
	}

	l, err := acl.Load(string(text))
	if err != nil {
		return nil, wrap(fmt.Errorf("parse acl file %s: %w", path, err))
	}

	return l, nil
}
