package main

import (
	"fmt"

	"github.com/kodokojo/eventgate/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
