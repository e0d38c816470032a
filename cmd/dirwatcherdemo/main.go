// Command dirwatcherdemo provides example usage of the dirwatcher library.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/watchkit/dirwatcher/internal/wlog"

	"github.com/watchkit/dirwatcher"
)

var usage = `
dirwatcherdemo is a directory-change watcher built on dirwatcher.
This command serves as an example and debugging tool.

Commands:

    watch [path]       Watch path (non-recursive) and print events.
    watch -r [path]    Watch path and its subtree, and print events.
`[1:]

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, filepath.Base(os.Args[0])+": "+format+"\n", a...)
	fmt.Print("\n" + usage)
	os.Exit(1)
}

func help() {
	fmt.Printf("%s [command] [arguments]\n\n", filepath.Base(os.Args[0]))
	fmt.Print(usage)
	os.Exit(0)
}

// printTime is a bit shorter than log.Print; we don't really need the date
// and ms is useful here.
func printTime(s string, args ...interface{}) {
	fmt.Printf(time.Now().Format("15:04:05.0000")+" "+s+"\n", args...)
}

func main() {
	if len(os.Args) == 1 {
		help()
	}
	for _, f := range os.Args[1:] {
		switch f {
		case "help", "-h", "-help", "--help":
			help()
		}
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	default:
		exit("unknown command: %q", cmd)
	case "watch":
		watch(args...)
	}
}

func watch(args ...string) {
	recursive := false
	var path string
	for _, a := range args {
		if a == "-r" {
			recursive = true
			continue
		}
		path = a
	}
	if path == "" {
		exit("must specify a path to watch")
	}

	i := 0
	id := dirwatcher.Start(dirwatcher.Request{
		Path:            path,
		Recursive:       recursive,
		EventIntervalMs: 100,
		EventCallback: func(id int64, isFile bool, name, oldName string, action dirwatcher.Action, errCode dirwatcher.ErrorCode, timeMs int64) int32 {
			i++
			if action == dirwatcher.Renamed {
				printTime("%3d [%d] RENAME %s -> %s", i, id, oldName, name)
				return 0
			}
			if errCode != dirwatcher.ErrorNone {
				printTime("%3d [%d] ERROR %v", i, id, errCode)
				return 0
			}
			printTime("%3d [%d] %-8v %s", i, id, actionName(action), name)
			return 0
		},
		StatsIntervalMs: 5000,
		StatsCallback: func(id int64, stats dirwatcher.Stats) {
			wlog.Infof("stats[%d]: collected=%d aged_out=%d workers=%d pending=%d",
				id, stats.EventsCollected, stats.EventsAgedOut, stats.WorkersRunning, stats.WorkersPending)
		},
	})
	if id < 0 {
		exit("%q: does not exist or is not a directory", path)
	}

	printTime("watching %q (recursive=%v) as id %s; press ^C to exit", path, recursive, strconv.FormatInt(id, 10))
	<-make(chan struct{}) // Block forever
}

func actionName(a dirwatcher.Action) string {
	switch a {
	case dirwatcher.Added:
		return "ADD"
	case dirwatcher.Removed:
		return "REMOVE"
	case dirwatcher.Touched:
		return "TOUCH"
	case dirwatcher.Renamed:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}
