// Utter - Single-shot text-to-speech CLI
// License: MIT

// Package provider picks the ONNX Runtime execution provider the
// synthesis engine should run on. Selection is a pure first-match
// walk over an ordered preference list; missing a preferred
// accelerator degrades to the next candidate and is never an error.
package provider

import (
	"github.com/utterhq/utter/pkg/logger"
)

// ONNX Runtime execution provider identifiers.
const (
	CUDA     = "CUDAExecutionProvider"
	TensorRT = "TensorrtExecutionProvider"
	CoreML   = "CoreMLExecutionProvider"
	CPU      = "CPUExecutionProvider"
)

// Preference builds the ordered provider list for a run. Without
// acceleration only CPU is requested, so no hardware is ever probed on
// that path. With acceleration the order is CUDA, then TensorRT, then
// the CPU fallback. CoreML is deliberately absent: it advertises
// itself on Apple hardware but cannot run Piper voice models.
func Preference(accel bool) []string {
	if !accel {
		return []string{CPU}
	}
	return []string{CUDA, TensorRT, CPU}
}

// Select returns the first preferred provider present in available.
// It is total: CPU is universally available, so as long as the
// preference list ends with CPU (Preference guarantees this) a value
// is always returned. An empty intersection falls back to CPU rather
// than failing, since selection must never be the thing that aborts a
// synthesis run.
func Select(preference, available []string) string {
	set := make(map[string]struct{}, len(available))
	for _, p := range available {
		set[p] = struct{}{}
	}

	for _, want := range preference {
		if _, ok := set[want]; ok {
			return want
		}
	}
	return CPU
}

// Report logs the selection result for the operator: which provider
// won, and whether the run is degraded relative to the top preference.
func Report(preference, available []string, chosen string) {
	if len(preference) > 0 && chosen != preference[0] {
		logger.WarnCF("provider", "Preferred execution provider unavailable, degrading", map[string]any{
			"requested": preference[0],
			"selected":  chosen,
			"available": available,
		})
		if chosen == CPU && contains(available, CoreML) {
			logger.WarnC("provider", "CoreML detected but not compatible with Piper models, staying on CPU")
		}
		return
	}

	logger.InfoCF("provider", "Execution provider selected", map[string]any{
		"selected": chosen,
	})
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
