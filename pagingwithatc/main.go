// Command pagingwithatc simulates address translation through a multi-level
// page table with a translation cache in front of it.
package main

import "github.com/sarchlab/pagewalk/pagingwithatc/cmd"

func main() {
	cmd.Execute()
}
