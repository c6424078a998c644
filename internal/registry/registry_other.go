//go:build !windows

package registry

type unsupportedStore struct{}

// NewUserStore returns a store that fails every call with ErrUnsupported.
func NewUserStore() Store { return unsupportedStore{} }

func (unsupportedStore) Get(string, string) (string, error) { return "", ErrUnsupported }

func (unsupportedStore) Set(string, string, string) error { return ErrUnsupported }

func (unsupportedStore) Delete(string, string) error { return ErrUnsupported }
