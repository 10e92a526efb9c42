package main

import "persona_ad_studio/cmd"

func main() {
	cmd.Execute()
}
