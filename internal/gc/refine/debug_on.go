// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build epochdebug

package refine

import "time"

// debugChecksDefault forces the assertion set on in epochdebug builds.
const debugChecksDefault = true

// debugWaitTimeout shrinks the wait budget to a few nanoseconds so the
// deferred path is exercised constantly.
const debugWaitTimeout = 3 * time.Nanosecond
