// Package lib provides a Go SDK for provisioning verification environments
// and checking warden agent controls programmatically.
//
// This package allows applications to run the full provision-and-verify
// flow without shelling out to the vetbox CLI binary. It is useful for CI
// pipelines, release gates, and building tools on top of vetbox.
//
// # Quick Start
//
// Create a client and run a full provision-and-verify cycle:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.ProvisionAndVerify(ctx, lib.RunOpts{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Report.Ok() {
//	    log.Fatalf("%d scenarios failed", result.Report.Failed())
//	}
//
// # Engines
//
// The SDK supports three engine types:
//
//   - [EngineDocker]: Environments run as Docker containers. Requires a
//     reachable Docker daemon.
//   - [EngineSSH]: Provisions onto an existing host over SSH. Requires
//     [Config].SSH.
//   - [EngineFake]: In-memory simulation with a simulated agent inside. No
//     real infrastructure needed. Set [Config].Engine to [EngineFake] to use
//     it.
//
// # Split Lifecycle
//
// Provisioning and verification can also run separately, keeping the
// environment alive between calls:
//
//	environment, _ := client.Provision(ctx, lib.ProvisionOpts{})
//	defer client.Teardown(ctx, environment.ID)
//
//	report, _ := client.Verify(ctx, environment.ID, nil)
//
// # Custom Catalogues
//
// Verification runs the built-in probe battery by default. Extend it or
// replace it entirely:
//
//	scenarios := append(lib.DefaultCatalogue(""), lib.Scenario{
//	    Description: "package installs are blocked",
//	    Command:     "apt-get",
//	    Args:        []string{"install", "-y", "netcat"},
//	    Expected:    lib.OutcomeBlocked,
//	})
//	report, _ := client.Verify(ctx, environment.ID, &lib.VerifyOpts{Scenarios: scenarios})
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Resource does not exist.
//   - [ErrNotValid]: Invalid input or operation.
//
// Failing scenario verdicts are never errors: they surface through
// [Report.Ok] and the run status.
//
// # Testing
//
// Use [EngineFake] and in-memory history to write tests without real
// infrastructure or files on disk:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    InMemoryHistory: true,
//	    Engine:          lib.EngineFake,
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. The
// underlying storage uses SQLite with WAL mode.
package lib
