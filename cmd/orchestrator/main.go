// Command orchestrator drives the Autonomous Agent Orchestration Core: it
// pulls tasks from a persisted work queue, runs each through the Iteration
// Loop under contract, and commits verified results.
package main

func main() {
	Execute()
}
