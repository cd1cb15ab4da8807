// rasco CLI entry point
//
// rasco schedules recurring DAG task sets offline: deadline-decomposition
// preprocessing followed by segment-driven EDF scheduling with per-segment
// cache-way and memory-bandwidth reallocation.
package main

import "github.com/jbctechsolutions/rasco/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}
