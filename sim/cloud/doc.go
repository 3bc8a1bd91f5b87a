// Package cloud models the resources and actors of a simulated IaaS cloud.
//
// Resources, leaf first:
//   - Pe and PeProvisioner: one processing element and the MIPS each VM holds on it.
//   - Provisioner: fixed RAM or bandwidth reservations per VM.
//   - VmScheduler: shares a host's PEs among VMs (time-shared or space-shared).
//   - Host: PEs, RAM, bandwidth and storage plus the VMs placed on it.
//   - AllocationPolicy: picks the host for a new VM (first-fit, best-fit, least-loaded).
//   - CloudletScheduler: runs cloudlets on the MIPS a VM was granted.
//
// Actors are sim.Entity implementations that only talk through events:
// a Broker discovers Datacenters, asks them to create VMs (VM_CREATE),
// submits cloudlets once every request is acknowledged (CLOUDLET_SUBMIT) and
// collects CLOUDLET_RETURN snapshots. A Datacenter advances its cloudlet
// schedulers on every event it handles and keeps a single self-addressed
// VM_DATACENTER_EVENT pending at the next projected completion.
//
// VMs are keyed by (broker, id) because ids are only unique per broker.
package cloud
