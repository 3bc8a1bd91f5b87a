package cloud

// Characteristics describes a datacenter's platform and price list.
type Characteristics struct {
	Arch           string
	OS             string
	Vmm            string
	TimeZone       float64
	CostPerSec     float64 // per second of CPU time
	CostPerMem     float64 // per MB of RAM
	CostPerStorage float64 // per MB of storage
	CostPerBw      float64 // per MB transferred
}

// DefaultCharacteristics matches the single-host example datacenter.
func DefaultCharacteristics() Characteristics {
	return Characteristics{
		Arch:           "x86",
		OS:             "Linux",
		Vmm:            "Xen",
		TimeZone:       10.0,
		CostPerSec:     3.0,
		CostPerMem:     0.05,
		CostPerStorage: 0.001,
		CostPerBw:      0.0,
	}
}

// CloudletCost charges CPU time plus data moved in and out.
func (c Characteristics) CloudletCost(cpuTime float64, fileSize, outputSize int64) float64 {
	if cpuTime < 0 {
		cpuTime = 0
	}
	return c.CostPerSec*cpuTime + c.CostPerBw*float64(fileSize+outputSize)
}

// VmCost charges a VM's static footprint.
func (c Characteristics) VmCost(spec VmSpec) float64 {
	return c.CostPerMem*float64(spec.Ram) + c.CostPerStorage*float64(spec.Size) + c.CostPerBw*float64(spec.Bw)
}
