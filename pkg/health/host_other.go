//go:build !linux

package health

func sampleHost() (HostSample, error) {
	return HostSample{}, errSamplingUnsupported
}
