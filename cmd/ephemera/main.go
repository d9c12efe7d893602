// Ephemera - preview environment janitor
// Scan. Classify. Reclaim.
package main

func main() {
	Execute()
}
