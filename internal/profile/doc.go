// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package profile loads run profiles: documents that describe a command to run inside a
// scratch workspace. Profiles are YAML, or HCL when the file name ends in ".hcl".
//
// HCL profiles can read the process environment through the "env" object:
//
//	root    = env.SCRATCH_ROOT
//	command = ["make", "test"]
package profile
