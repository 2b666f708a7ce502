// Package profile loads build profiles from HCL files.
//
// A profile decides, for every known symbol, whether it should be active:
//
//	profile "no-net" {
//	  description = "Drop networking support"
//	  active      = active && !contains(["MBEDTLS_NET_C", "MBEDTLS_TIMING_C"], name)
//	}
//
// The active expression sees the variables name, active and section and
// can call matches, contains, upper, lower, can and try.
package profile
