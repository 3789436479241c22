//go:build !nogpu

// Command shaderpg renders a WGSL fragment shader offscreen and swaps in a
// rebuilt pipeline whenever the shader file changes, without stalling
// frames that are still in flight on the GPU.
//
// Usage:
//
//	shaderpg --shader plasma.wgsl --backend vulkan --snapshot last.png
//
// Press Enter to force a reload. Ctrl+C exits.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
