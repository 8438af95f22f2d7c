// Package harness runs acceptance tests against a package-manager tool.
//
// Two entry points share one assertion layer:
//
//   - Go tests use a Lifecycle directly: Main sets up a shared download
//     cache for the test binary, Lifecycle.Sandbox creates a sandbox per
//     test, and AssertInstalled checks a command result.
//   - Scenario files describe the same thing declaratively and are run by
//     Run, usually through the pkgprobe CLI.
//
// # Scenario Format
//
// Scenarios are YAML (or CUE, for .cue files) with the following structure:
//
//	name: install_editable
//	description: "pip install creates an egg-link and src checkout"
//	env_file: test.env
//	files:
//	  requirements.txt: "foo\n"
//	steps:
//	  - run: [pip, install, Foo]
//	    assertions:
//	      - type: exit_code
//	        code: 0
//	      - type: installed
//	        package: Foo
//	        with_files: [setup.py]
//	  - run: [pip, uninstall, -y, Foo]
//	    assertions:
//	      - type: deleted
//	        paths: ["{site_packages}/Foo.egg-link"]
//
// # Assertion Types
//
//   - exit_code: the step exited with code
//   - stdout_contains, stderr_contains: output contains text
//   - created, deleted, updated: each path is in that change set
//   - not_created: no path was created
//   - installed: AssertInstalled with package, with_files, without_files
//     and without_link_file
//
// # Failures
//
// Assertion failures, unexpected nonzero exits and leftover temp files
// fail the scenario and are reported in Result.Errors. Anything else,
// such as a provisioning error or a missing executable, aborts Run with an
// error. IsAssertionFailure tells the two apart.
//
// # Golden Traces
//
// A scenario's trace lists each step's argv, exit code and sorted change
// sets. MarshalTrace renders it as canonical JSON so traces can be compared
// byte for byte across runs (RunWithGolden, or pkgprobe test --update).
package harness
