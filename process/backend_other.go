//go:build !linux && !windows

package process

func newOSBackend() Backend {
	return unsupportedBackend{}
}

type unsupportedBackend struct{}

func (unsupportedBackend) ProcessIDs() ([]uint32, error) {
	return nil, ErrUnsupportedPlatform
}

func (unsupportedBackend) OpenProcess(uint32) (Target, error) {
	return nil, ErrUnsupportedPlatform
}
