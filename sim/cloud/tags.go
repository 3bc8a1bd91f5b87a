package cloud

import "github.com/cloudlet-sim/cloudlet-sim/sim"

// Entity kinds registered by this package.
const (
	KindDatacenter = "datacenter"
	KindBroker     = "broker"
)

// Message tags exchanged between brokers and datacenters.
const (
	TagCharacteristicsRequest sim.Tag = "RESOURCE_CHARACTERISTICS_REQUEST"
	TagCharacteristics        sim.Tag = "RESOURCE_CHARACTERISTICS"
	TagVmCreate               sim.Tag = "VM_CREATE"
	TagVmCreateAck            sim.Tag = "VM_CREATE_ACK"
	TagVmDestroy              sim.Tag = "VM_DESTROY"
	TagVmDestroyAck           sim.Tag = "VM_DESTROY_ACK"
	TagCloudletSubmit         sim.Tag = "CLOUDLET_SUBMIT"
	TagCloudletReturn         sim.Tag = "CLOUDLET_RETURN"
	TagCloudletCancel         sim.Tag = "CLOUDLET_CANCEL"
	TagVmDatacenterEvent      sim.Tag = "VM_DATACENTER_EVENT"
)

// VmCreateAck answers a VM_CREATE request.
type VmCreateAck struct {
	VmID         int
	DatacenterID sim.EntityID
	HostID       int // -1 when not allocated
	OK           bool
	Reason       string
}

// VmDestroyRequest asks a datacenter to release a VM owned by the sender.
type VmDestroyRequest struct {
	VmID int
}

// CloudletCancelRequest asks a datacenter to stop a cloudlet the sender
// submitted to one of its VMs.
type CloudletCancelRequest struct {
	CloudletID int
	VmID       int
}

// VmDestroyAck answers a VM_DESTROY request.
type VmDestroyAck struct {
	VmID         int
	DatacenterID sim.EntityID
	OK           bool
}

// DatacenterInfo answers a characteristics request.
type DatacenterInfo struct {
	ID              sim.EntityID
	Name            string
	Characteristics Characteristics
	Hosts           int
	Pes             int
	TotalMips       float64
}
