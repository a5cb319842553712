// SPDX-License-Identifier: MPL-2.0

// mesonwheel builds Python wheels and source distributions from Meson
// projects.
package main

import cmd "github.com/mesonwheel/mesonwheel/cmd/mesonwheel"

func main() {
	cmd.Execute()
}
