package cloud

import "github.com/pkg/errors"

var (
	// ErrAllocationFailed means no host in the datacenter can take the VM.
	// The VM stays unassigned and the simulation continues.
	ErrAllocationFailed = errors.New("vm allocation failed")

	// ErrProvisionerExhausted means a PE, RAM, BW or storage pool could not
	// satisfy a request at allocation time.
	ErrProvisionerExhausted = errors.New("provisioner exhausted")

	// ErrInvalidReference means a cloudlet names a VM that does not exist.
	ErrInvalidReference = errors.New("invalid vm reference")
)
