// Command storefrontctl runs the storefront's build-time checks: it validates
// the query catalog and page templates and prints pre-render path lists.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
