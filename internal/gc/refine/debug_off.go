// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build !epochdebug

package refine

import "time"

// debugChecksDefault leaves the assertion set to Config.DebugChecks.
const debugChecksDefault = false

// debugWaitTimeout leaves the wait budget at its release default.
const debugWaitTimeout = time.Duration(0)
