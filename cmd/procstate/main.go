// Command procstate inspects process memory layout and snapshot archives and
// demonstrates arena save/restore.
package main

func main() {
	execute()
}
