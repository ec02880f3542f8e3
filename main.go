package main

import "github.com/frahmantamala/credit-marketplace/cmd"

func main() {
	cmd.Execute()
}
