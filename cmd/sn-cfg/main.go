// Command sn-cfg is the command line client of the SmartNIC config agent.
//
// Usage:
//
//	# Display non-zero statistics of every device
//	sn-cfg show stats
//
//	# Display counters of the CMAC blocks, with labels
//	sn-cfg show stats -m counter -f 'zone(prefix("cmac"))' -l
//
//	# Display egress datapath views of port 1 with byte counts
//	sn-cfg show stats view -v 'sn.egr.*:1:out' -b
//
//	# Clear the statistics of device 0
//	sn-cfg clear stats -d 0
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
