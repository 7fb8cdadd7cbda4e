package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/rdmalab/pingpong/internal/rdma"
)

func main() {
	flagSet := pflag.NewFlagSet("lsrdma", pflag.ExitOnError)
	verbose := flagSet.BoolP("verbose", "v", false, "Also report per-port states")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	devices, err := rdma.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("INFO: Found %d rdma device(s) on this host.\n", len(devices))
	for _, dev := range devices {
		fmt.Printf("Name = %s.\n", dev.Name)
		fmt.Printf("GUID = %d.\n", dev.GUID)
		if !*verbose {
			continue
		}
		fmt.Printf("Type = %s.\n", dev.NodeType)
		ports, err := rdma.QueryPorts(dev.Name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error querying ports of %s: %v\n", dev.Name, err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Printf("Port %d = %s.\n", p.Num, p.State)
		}
	}
}
