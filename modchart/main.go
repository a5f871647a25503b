// Command modchart plays, inspects and serves mod-charts.
package main

import "github.com/tempolab/modchart/modchart/cmd"

func main() {
	cmd.Execute()
}
