package main

import "relationship-app-backend/cmd"

func main() {
	cmd.Run()
}
