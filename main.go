package main

import "github.com/frahmantamala/loan-desk/cmd"

func main() {
	cmd.Execute()
}
