// Package sim provides the discrete-event simulation kernel for cloudlet-sim.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - event.go: Event values (time, sequence, source, destination, tag, payload)
//   - queue.go: the EventQueue, ordered by (time, sequence) for deterministic replay
//   - simulation.go: the Simulation context, its state machine and the event loop
//   - entity.go: the Entity contract and per-entity mailboxes
//
// # Architecture
//
// The kernel knows nothing about clouds. Entities (datacenters, brokers) live in
// sim/cloud and talk to each other only through Simulation.Send, addressing
// peers by EntityID. Sub-packages:
//   - sim/cloud/: hosts, PEs, provisioners, VM and cloudlet schedulers,
//     allocation policies, Datacenter and Broker entities
//   - sim/scenario/: YAML scenario specs and the builder that wires a Simulation
//   - sim/trace/: event and decision trace recording
//   - sim/report/: result tables and summary statistics
//
// A Simulation is single-threaded and not safe for concurrent use. Separate
// Simulation values share no state and may run in separate goroutines.
package sim
