package main

import "github.com/oshokin/jscript-net/cmd/jsnet-jsc/cmd"

func main() {
	cmd.Execute()
}
