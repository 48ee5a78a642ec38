package main

import "github.com/oshokin/jscript-net/cmd/jsnet-installer/cmd"

func main() {
	cmd.Execute()
}
