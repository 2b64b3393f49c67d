// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/pacbox/cmd/pacboxd/cmd"
)

func main() {
	cmd.Execute()
}
