// AttendLog - Class Attendance from Meeting Logs
//
// AttendLog reads a video-meeting participation export and an optional
// roster, and reports which students attended enough of the class.
package main

import (
	"os"

	"github.com/ccollicutt/attendlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
