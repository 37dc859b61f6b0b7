// Package lingua assembles the task orchestration engine: a ledger of task
// state, an intent registry, a worker-pool orchestrator and a delegation
// channel for handing steps off to cooperating agents. The zero-config New
// call wires in-memory implementations of every collaborator; production
// deployments swap them through options.
package lingua
