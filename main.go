package main

import "auto-tube/cmd"

func main() {
	cmd.Execute()
}
