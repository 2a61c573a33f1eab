// Package main provides the trajnet CLI.
package main

import (
	"os"

	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := NewCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
