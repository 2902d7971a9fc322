// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the
// ssh-agent-switcher binary.
//
// A [Command] has a pflag flag set, optional subcommands, and a Run
// function. [Command.Execute] dispatches on the first positional
// argument, parses flags, and reports unknown commands and flags with a
// closest-match suggestion. A command whose non-zero exit is an
// expected outcome (nothing found, check failed) returns an
// [ExitError]; main exits with its code without printing it.
//
// [NewLogger] builds the process logger: text output for a terminal,
// JSON when stderr is redirected.
package cli
