/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/rolegate/rolegate/cmd"

func main() {
	cmd.Execute()
}
