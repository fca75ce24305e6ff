package main

import "github.com/frahmantamala/course-marketplace/cmd"

func main() {
	cmd.Execute()
}
