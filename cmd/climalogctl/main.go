// Command climalogctl is the operator tool for a climalog server: it migrates
// the database and sends, publishes, simulates or lists readings.
package main

func main() {
	Execute()
}
