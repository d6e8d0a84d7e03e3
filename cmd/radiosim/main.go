// Command radiosim runs the colony listening-session simulation.
package main

func main() {
	Execute()
}
